package enricher

import (
	"net"
	"time"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/event"
)

type Enricher struct {
	geoIP *geoip2.Reader
}

// NewEnricher opens the GeoIP database when a path is given. A missing
// database only disables the country and city fields.
func NewEnricher(geoIPPath string) *Enricher {
	var geoIP *geoip2.Reader
	if geoIPPath != "" {
		var err error
		geoIP, err = geoip2.Open(geoIPPath)
		if err != nil {
			log.Warn().Err(err).Str("path", geoIPPath).Msg("GeoIP database unavailable")
		}
	}

	return &Enricher{
		geoIP: geoIP,
	}
}

// EnrichedReport is a report as the collector forwards it downstream.
type EnrichedReport struct {
	event.Report

	EventID         string `json:"event_id"`
	ProjectID       string `json:"project_id"`
	ServerTimestamp int64  `json:"server_timestamp"`
	Browser         string `json:"browser"`
	BrowserVersion  string `json:"browser_version"`
	OS              string `json:"os"`
	DeviceType      string `json:"device_type"`
	Country         string `json:"country"`
	City            string `json:"city"`
	ClientIP        string `json:"client_ip,omitempty"`
}

// Enrich attaches server side metadata. The request user agent wins over the
// one the SDK reported.
func (e *Enricher) Enrich(r event.Report, eventID, projectID, userAgentString, clientIP string) *EnrichedReport {
	enriched := &EnrichedReport{
		Report:          r,
		EventID:         eventID,
		ProjectID:       projectID,
		ServerTimestamp: time.Now().UnixMilli(),
		ClientIP:        clientIP,
	}

	if userAgentString == "" && r.DeviceInfo != nil {
		userAgentString = r.DeviceInfo.UA
	}
	if userAgentString != "" {
		ua := useragent.New(userAgentString)
		enriched.Browser, enriched.BrowserVersion = ua.Browser()
		enriched.OS = ua.OS()
		enriched.DeviceType = getDeviceType(ua)
	}

	if e.geoIP != nil && clientIP != "" {
		if ip := net.ParseIP(clientIP); ip != nil {
			record, err := e.geoIP.City(ip)
			if err == nil {
				enriched.Country = record.Country.IsoCode
				if name, ok := record.City.Names["en"]; ok {
					enriched.City = name
				}
			}
		}
	}

	return enriched
}

func getDeviceType(ua *useragent.UserAgent) string {
	if ua.Mobile() {
		return "mobile"
	}
	if ua.Bot() {
		return "bot"
	}
	return "desktop"
}

func (e *Enricher) Close() {
	if e.geoIP != nil {
		e.geoIP.Close()
	}
}
