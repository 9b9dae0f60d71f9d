package idn

import (
	"strings"
)

// vendors is the manufacturer table. Matching is by case-insensitive prefix
// of the *IDN? manufacturer field, so "RIGOL TECHNOLOGIES" and
// "Rigol Technologies" both resolve to the same entry.
var vendors = []struct {
	prefixes []string
	vendor   Vendor
}{
	{[]string{"RIGOL"}, Vendor{Key: "rigol", Name: "Rigol Technologies", USBVendorIDs: []uint16{0x1AB1}}},
	{[]string{"KEYSIGHT", "AGILENT", "HEWLETT-PACKARD"}, Vendor{Key: "keysight", Name: "Keysight Technologies", USBVendorIDs: []uint16{0x0957, 0x2A8D}}},
	{[]string{"TEKTRONIX"}, Vendor{Key: "tektronix", Name: "Tektronix", USBVendorIDs: []uint16{0x0699}}},
	{[]string{"SIGLENT"}, Vendor{Key: "siglent", Name: "Siglent Technologies", USBVendorIDs: []uint16{0xF4EC, 0xF4ED}}},
	{[]string{"ROHDE", "HAMEG"}, Vendor{Key: "rohde-schwarz", Name: "Rohde & Schwarz", USBVendorIDs: []uint16{0x0AAD}}},
	{[]string{"KEITHLEY"}, Vendor{Key: "keithley", Name: "Keithley Instruments", USBVendorIDs: []uint16{0x05E6}}},
	{[]string{"THURLBY", "TTI"}, Vendor{Key: "tti", Name: "Aim-TTi", USBVendorIDs: []uint16{0x103E}}},
}

// LookupVendor returns the vendor for a manufacturer string. Unknown
// manufacturers get a Vendor keyed "unknown" carrying the raw name.
func LookupVendor(manufacturer string) (Vendor, bool) {
	m := strings.ToUpper(strings.TrimSpace(manufacturer))
	for _, entry := range vendors {
		for _, p := range entry.prefixes {
			if strings.HasPrefix(m, p) {
				return entry.vendor, true
			}
		}
	}
	return Vendor{Key: "unknown", Name: manufacturer}, false
}

// KnownUSBVendorIDs lists every USB vendor ID in the table.
func KnownUSBVendorIDs() []uint16 {
	var ids []uint16
	for _, entry := range vendors {
		ids = append(ids, entry.vendor.USBVendorIDs...)
	}
	return ids
}
