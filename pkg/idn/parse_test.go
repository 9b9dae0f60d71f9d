package idn

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		raw       string
		want      Identity
		malformed bool
	}{
		{
			raw: "RIGOL TECHNOLOGIES,DS1054Z,DS1ZA000000001,00.04.04.SP4\n",
			want: Identity{
				Manufacturer:    "RIGOL TECHNOLOGIES",
				Model:           "DS1054Z",
				SerialNumber:    "DS1ZA000000001",
				FirmwareVersion: "00.04.04.SP4",
			},
		},
		{
			raw: "KEYSIGHT TECHNOLOGIES,DSO-X 2024A,MY12345678,02.50.2019022736,OPT1",
			want: Identity{
				Manufacturer:    "KEYSIGHT TECHNOLOGIES",
				Model:           "DSO-X 2024A",
				SerialNumber:    "MY12345678",
				FirmwareVersion: "02.50.2019022736,OPT1",
			},
		},
		{
			raw:       "BS0010",
			want:      Identity{Manufacturer: "BS0010"},
			malformed: true,
		},
		{
			raw:       "",
			malformed: true,
		},
		{
			raw:       "Acme,,123,1.0",
			want:      Identity{Manufacturer: "Acme", SerialNumber: "123", FirmwareVersion: "1.0"},
			malformed: true,
		},
	}

	for _, tc := range cases {
		got := Parse(tc.raw)
		if got.Malformed != tc.malformed {
			t.Fatalf("Parse(%q).Malformed = %v, want %v", tc.raw, got.Malformed, tc.malformed)
		}
		if got.Manufacturer != tc.want.Manufacturer || got.Model != tc.want.Model ||
			got.SerialNumber != tc.want.SerialNumber || got.FirmwareVersion != tc.want.FirmwareVersion {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestVendor(t *testing.T) {
	cases := map[string]string{
		"RIGOL TECHNOLOGIES":    "rigol",
		"Rigol Technologies":    "rigol",
		"Agilent Technologies":  "keysight",
		"KEYSIGHT TECHNOLOGIES": "keysight",
		"Siglent Technologies":  "siglent",
		"Nobody Inc":            "unknown",
	}
	for manufacturer, want := range cases {
		id := Identity{Manufacturer: manufacturer}
		if got := id.Vendor().Key; got != want {
			t.Fatalf("Vendor(%q) = %s, want %s", manufacturer, got, want)
		}
	}

	if len(KnownUSBVendorIDs()) == 0 {
		t.Fatalf("no USB vendor IDs")
	}
}
