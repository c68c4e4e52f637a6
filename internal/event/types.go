package event

// SDK identity attached to every report.
const (
	SDKName    = "websee"
	SDKVersion = "1.2.0"
)

// Type identifies what produced an event. It doubles as the event bus topic.
type Type string

const (
	XHR                Type = "xhr"
	Fetch              Type = "fetch"
	Click              Type = "click"
	History            Type = "history"
	Error              Type = "error"
	Hashchange         Type = "hashchange"
	UnhandledRejection Type = "unhandledrejection"
	Resource           Type = "resource"
	DOM                Type = "dom"
	Vue                Type = "vue"
	React              Type = "react"
	Custom             Type = "custom"
	Performance        Type = "performance"
	RecordScreen       Type = "recordScreen"
	WhiteScreen        Type = "whiteScreen"
)

// Status is the outcome recorded on breadcrumbs and reports.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Category groups breadcrumbs by the kind of user/system activity.
type Category string

const (
	CategoryHTTP      Category = "Http"
	CategoryClick     Category = "Click"
	CategoryResource  Category = "Resource_Error"
	CategoryCodeError Category = "Code_Error"
	CategoryRoute     Category = "Route"
	CategoryCustom    Category = "Custom"
)

// BreadcrumbExempt reports whether reports of type t are sent without a
// breadcrumb snapshot. These types are high volume and carry no user context.
func BreadcrumbExempt(t Type) bool {
	switch t {
	case Performance, RecordScreen, WhiteScreen:
		return true
	}
	return false
}
