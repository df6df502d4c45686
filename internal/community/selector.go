package community

import "github.com/PuerkitoBio/goquery"

// TableSelector picks the incident table out of a parsed page.
type TableSelector interface {
	Select(doc *goquery.Document) (header []string, table *goquery.Selection, ok bool)
}

// FingerprintSelector matches the first table whose first header row has
// more than one th and whose th at Index reads Label.
type FingerprintSelector struct {
	Index int
	Label string
}

// DefaultSelector recognizes yearly wildfire tables by their County column.
func DefaultSelector() FingerprintSelector {
	return FingerprintSelector{Index: 1, Label: "County"}
}

// Select implements TableSelector.
func (f FingerprintSelector) Select(doc *goquery.Document) ([]string, *goquery.Selection, bool) {
	var (
		header []string
		match  *goquery.Selection
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		first := tableRows(table).First()
		if first.Length() == 0 {
			return true
		}
		var names []string
		first.ChildrenFiltered("th").Each(func(_ int, th *goquery.Selection) {
			names = append(names, cleanText(th.Text()))
		})
		if len(names) > 1 && f.Index < len(names) && names[f.Index] == f.Label {
			header = names
			match = table
			return false
		}
		return true
	})
	return header, match, match != nil
}

// tableRows returns the rows of table itself, skipping rows of tables
// nested inside its cells.
func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("tr").AddSelection(
		table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"),
	)
}
