package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
)

// USBTMC interface class codes (USB Test & Measurement Class).
const (
	USBTMCClass    = gousb.ClassApplication
	USBTMCSubClass = 0x03
)

// USBScanner enumerates USBTMC instruments from known test and measurement
// vendors.
type USBScanner struct {
	// VendorIDs restricts the scan; nil means every vendor in the idn table.
	VendorIDs []uint16
}

// Scan opens each matching device briefly to read its serial number. A
// device that cannot be opened (permissions) is skipped.
func (s USBScanner) Scan(ctx context.Context) ([]Locator, error) {
	vendors := s.VendorIDs
	if vendors == nil {
		vendors = idn.KnownUSBVendorIDs()
	}

	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return knownVendor(vendors, uint16(desc.Vendor)) && hasTMCInterface(desc)
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return nil, fmt.Errorf("usb scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []Locator
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		results = append(results, Locator{
			Kind:      KindUSB,
			VendorID:  uint16(dev.Desc.Vendor),
			ProductID: uint16(dev.Desc.Product),
			Serial:    serial,
			Interface: -1,
		})
	}
	return results, nil
}

func knownVendor(ids []uint16, vid uint16) bool {
	for _, id := range ids {
		if id == vid {
			return true
		}
	}
	return false
}

func hasTMCInterface(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == USBTMCClass && alt.SubClass == USBTMCSubClass {
					return true
				}
			}
		}
	}
	return false
}
