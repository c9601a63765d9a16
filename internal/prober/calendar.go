package prober

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/permit-watch/internal/reservation"
)

// CSS selectors for the recreation.gov permit page controls
const (
	AddMembersSelector    = `button[data-component="Button"][type="button"].sarsa-button.sarsa-button-subtle.sarsa-button-sm[aria-label="Add members"]`
	NextMonthSelector     = `button[type="button"][aria-label="Next"].next-prev-button`
	AvailableCellSelector = `div[tabindex="-1"][role="button"].calendar-cell.is-styled-day.available`
)

// FindAvailableCell reports whether the page HTML has an available calendar
// cell for the formatted date.
func FindAvailableCell(html, formattedDate string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("parsing HTML: %w", err)
	}

	want := reservation.AvailableLabel(formattedDate)
	match := doc.Find(AvailableCellSelector).FilterFunction(func(i int, sel *goquery.Selection) bool {
		label, ok := sel.Attr("aria-label")
		return ok && label == want
	})

	return match.Length() > 0, nil
}

// AvailableLabels lists the aria-labels of every available calendar cell
func AvailableLabels(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	labels := make([]string, 0)
	doc.Find(AvailableCellSelector).Each(func(i int, sel *goquery.Selection) {
		if label, ok := sel.Attr("aria-label"); ok {
			labels = append(labels, strings.TrimSpace(label))
		}
	})
	return labels, nil
}
