package scraper

import (
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// localeActions forces a pt-BR Accept-Language on every request in the tab.
// The parsers key off Brazilian renderings (feed end markers, phone formats),
// so the locale must not depend on the host machine.
func localeActions() []chromedp.Action {
	return []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "pt-BR,pt;q=0.9,en;q=0.8",
		}),
	}
}

// navigate prepends the locale headers to the given actions so every
// scraper navigation goes out with the same request profile.
func navigate(actions ...chromedp.Action) []chromedp.Action {
	return append(localeActions(), actions...)
}
