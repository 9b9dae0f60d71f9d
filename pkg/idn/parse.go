package idn

import (
	"fmt"
	"strings"
)

// Parse splits a comma delimited identification response into its four
// fields. It never fails: a short or empty response yields a partially
// populated Identity with Malformed set. Commas beyond the third belong to
// the firmware field, which some vendors use for option lists.
func Parse(raw string) Identity {
	raw = strings.TrimRight(raw, "\r\n\x00")
	id := Identity{Raw: raw}

	parts := strings.SplitN(raw, ",", 4)
	fields := []*string{&id.Manufacturer, &id.Model, &id.SerialNumber, &id.FirmwareVersion}
	for i, part := range parts {
		*fields[i] = strings.TrimSpace(part)
	}
	if len(parts) < 4 || id.Manufacturer == "" || id.Model == "" {
		id.Malformed = true
	}
	return id
}

// Vendor resolves the manufacturer field against the known vendor table.
func (id Identity) Vendor() Vendor {
	v, _ := LookupVendor(id.Manufacturer)
	return v
}

// String renders the identity on one line.
func (id Identity) String() string {
	if id.Malformed {
		return fmt.Sprintf("malformed identity %q", id.Raw)
	}
	return fmt.Sprintf("%s %s (s/n %s, fw %s)", id.Manufacturer, id.Model, id.SerialNumber, id.FirmwareVersion)
}
