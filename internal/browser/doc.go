// Package browser drives a headless Chrome instance through chromedp.
//
// Each Session owns its own browser process and tab, so nothing is shared between
// availability checks. Sessions expose only what the prober needs: navigation,
// clicking a control a number of times, and reading the rendered HTML.
package browser
