package source

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

// recordFromPage maps a database page to a Record. The reserved
// properties drive the pipeline; every other extractable property is
// carried as ordered metadata (sorted by name, since the wire format is
// an unordered map).
func recordFromPage(page notionapi.Page) Record {
	rec := Record{SourceID: page.ID.String()}

	for name, prop := range page.Properties {
		value, ok := extractPropertyValue(prop)
		if !ok {
			continue
		}
		switch name {
		case PropTitle:
			rec.Title = value
		case PropPublish:
			rec.Publish = value == "true"
		case PropDocID:
			rec.AssignedID = strings.TrimSpace(value)
		default:
			if value != "" {
				rec.Meta = append(rec.Meta, docmodel.Attribute{Name: name, Value: value})
			}
		}
	}
	if rec.Title == "" {
		rec.Title = "Untitled"
	}
	sort.Slice(rec.Meta, func(i, j int) bool { return rec.Meta[i].Name < rec.Meta[j].Name })
	return rec
}

// extractPropertyValue flattens a property to its display string. The
// supported set mirrors what the site renders: anything else reads as
// absent.
func extractPropertyValue(prop notionapi.Property) (string, bool) {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return richTextPlain(p.Title), true
	case *notionapi.RichTextProperty:
		return richTextPlain(p.RichText), true
	case *notionapi.CheckboxProperty:
		if p.Checkbox {
			return "true", true
		}
		return "false", true
	case *notionapi.SelectProperty:
		return p.Select.Name, true
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", "), true
	case *notionapi.NumberProperty:
		return trimFloat(p.Number), true
	case *notionapi.DateProperty:
		if p.Date != nil && p.Date.Start != nil {
			return p.Date.Start.String(), true
		}
		return "", false
	case *notionapi.PeopleProperty:
		names := make([]string, 0, len(p.People))
		for _, person := range p.People {
			if person.Name != "" {
				names = append(names, person.Name)
			}
		}
		return strings.Join(names, ", "), true
	case *notionapi.URLProperty:
		return p.URL, true
	case *notionapi.EmailProperty:
		return p.Email, true
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber, true
	default:
		return "", false
	}
}

func richTextPlain(spans []notionapi.RichText) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.PlainText)
	}
	return b.String()
}

// trimFloat renders whole numbers without a decimal point.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
