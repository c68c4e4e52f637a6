package plugin

import (
	"context"

	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/whitescreen"
)

// WhiteScreen runs the white-screen detector as a plugin instead of through
// the silent_white_screen option.
type WhiteScreen struct {
	skeleton bool
	whiteBox []string
	options  []whitescreen.Option

	sdk      SDK
	detector *whitescreen.Detector
}

func NewWhiteScreen(skeleton bool, whiteBox []string, options ...whitescreen.Option) *WhiteScreen {
	return &WhiteScreen{skeleton: skeleton, whiteBox: whiteBox, options: options}
}

func (p *WhiteScreen) Type() event.Type { return event.WhiteScreen }

func (p *WhiteScreen) BindOptions(opts *config.Options) {
	if p.skeleton {
		opts.SkeletonProject = true
	}
	if len(p.whiteBox) > 0 {
		opts.WhiteBoxElements = p.whiteBox
	}
}

func (p *WhiteScreen) Core(sdk SDK) {
	p.sdk = sdk
	p.detector = whitescreen.New(sdk.Window, sdk.Options, p.options...)
	p.detector.Start(func(status event.Status) {
		sdk.Notify(event.WhiteScreen, status)
	})
}

func (p *WhiteScreen) Transform(data any) {
	status, ok := data.(event.Status)
	if !ok || p.sdk.Transport == nil {
		return
	}
	p.sdk.Transport.Send(context.Background(), event.Report{
		Type:   event.WhiteScreen,
		Status: status,
		Time:   event.Now(),
	})
}

func (p *WhiteScreen) Stop() {
	if p.detector != nil {
		p.detector.Stop()
	}
}
