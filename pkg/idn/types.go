package idn

// Query is the IEEE 488.2 identification query.
const Query = "*IDN?"

// Identity is a parsed *IDN? response.
type Identity struct {
	Manufacturer    string // "RIGOL TECHNOLOGIES"
	Model           string // "DS1054Z"
	SerialNumber    string // "DS1ZA000000001"
	FirmwareVersion string // "00.04.04.SP4"

	Raw       string // response as received, terminator stripped
	Malformed bool   // fewer than four fields were present
}

// Vendor describes a normalized instrument manufacturer.
type Vendor struct {
	Key          string   // stable identifier used by driver predicates, "rigol"
	Name         string   // "Rigol Technologies"
	USBVendorIDs []uint16 // USB-TMC vendor IDs used by this manufacturer
}
