// Package asset loads the read-only asset inventory (IP → device name,
// tag → description) and exposes the pure address-translation functions the
// Modbus, S7Comm and XGT FEnet parsers use to annotate a record.
package asset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
)

// Catalogue holds the three immutable lookup maps built once at startup.
// Values are copied by string; nothing here is mutated after Load returns.
type Catalogue struct {
	ipToDevice map[string]string
	tagToDesc  map[string]string
}

// Empty returns a Catalogue with no rows loaded, useful when asset files are
// not configured; every lookup then misses cleanly.
func Empty() *Catalogue {
	return &Catalogue{ipToDevice: map[string]string{}, tagToDesc: map[string]string{}}
}

// DeviceName looks up the device name for a normalised IPv4 literal.
func (c *Catalogue) DeviceName(ip string) string {
	return c.ipToDevice[NormaliseIP(ip)]
}

// TagDescription looks up the description for a translated tag address.
func (c *Catalogue) TagDescription(tag string) string {
	if tag == "" {
		return ""
	}
	return c.tagToDesc[tag]
}

// NormaliseIP applies the CSV ingestion quirks documented in spec §4.B and
// §9 to a raw IP cell: strips a leading "modbus:" prefix, strips a trailing
// "/port" suffix, and repairs a comma-as-decimal typo. It is idempotent:
// NormaliseIP(NormaliseIP(x)) == NormaliseIP(x).
func NormaliseIP(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "modbus:")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ",", ".")
	return s
}

// LoadIPInventory reads the IP inventory CSV. Each row is a (device name,
// ip[,...]) pair; blank device names inherit the previous row's name with a
// "(secondary)" suffix. Invalid IPs are logged and skipped, never fatal.
func (c *Catalogue) LoadIPInventory(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ip inventory %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	lastDevice := ""
	first := true
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "device") {
				continue
			}
		}
		if len(rec) < 2 {
			continue
		}
		device := strings.TrimSpace(rec[0])
		rawIP := strings.TrimSpace(rec[1])

		ip := NormaliseIP(rawIP)
		if net.ParseIP(ip) == nil {
			log.Printf("asset: skipping invalid ip %q for device %q", rawIP, device)
			continue
		}

		if device == "" {
			device = lastDevice + " (secondary)"
		}
		lastDevice = device

		c.ipToDevice[ip] = device
	}
	return nil
}

// LoadTagFile reads a wired-tag CSV. It skips a leading UTF-8 BOM and the
// header row, then maps five per-vendor tag columns onto the same
// description string in column 0.
func (c *Catalogue) LoadTagFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tag file %q: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\uFEFF" {
		br.Discard(3)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header := true
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 6 {
			continue
		}
		description := strings.TrimSpace(rec[0])
		if description == "" {
			continue
		}
		// Columns 1..5 are per-vendor tag address spellings that all
		// resolve to the same description.
		for _, col := range rec[1:6] {
			tag := strings.TrimSpace(col)
			if tag == "" {
				continue
			}
			c.tagToDesc[tag] = description
		}
	}
	return nil
}

// TranslateXGT converts a "%XX<digits>" XGT variable name into its
// "D<n>|M<n>|P<n>" translated form. Only the DB, MB and PB areas translate;
// anything else yields the empty string.
func TranslateXGT(name string) string {
	if len(name) < 3 || name[0] != '%' {
		return ""
	}
	area := name[1:3]
	digits := name[3:]
	if digits == "" {
		return ""
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return ""
	}
	var prefix string
	switch area {
	case "DB":
		prefix = "D"
	case "MB":
		prefix = "M"
	case "PB":
		prefix = "P"
	default:
		return ""
	}
	return fmt.Sprintf("%s%d", prefix, n/2)
}

// Modbus register-space base offsets by function code.
const (
	modbusCoilBase     = 1
	modbusInputBase    = 10001
	modbusHoldingIn    = 300001
	modbusHoldingOut   = 400001
)

// TranslateModbus maps a raw Modbus register address to its conventional
// decimal reference number for the given function code.
func TranslateModbus(functionCode uint8, addr uint16) string {
	var base int
	switch functionCode {
	case 0:
		base = modbusCoilBase
	case 1, 2:
		base = modbusInputBase
	case 3:
		base = modbusHoldingIn
	case 4:
		base = modbusHoldingOut
	default:
		return strconv.Itoa(int(addr))
	}
	return strconv.Itoa(base + int(addr))
}

// s7AreaDB is the S7 area byte value (decimal 132 / 0x84) that identifies a
// data-block access; any other area translates to the empty string.
const s7AreaDB = 0x84

// TranslateS7 renders an S7 data-block area/db/address triple as
// "DB<db>,<addr>", or the empty string for any other area byte.
func TranslateS7(area uint8, db uint16, addr uint32) string {
	if area != s7AreaDB {
		return ""
	}
	return fmt.Sprintf("DB%d,%d", db, addr)
}
