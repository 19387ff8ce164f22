package nn

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"github.com/hashicorp/go-multierror"
)

// Networks bundles the pair of networks a search needs: one policy head
// and one value head, loaded from a single concatenated file (spec.md
// §7: "network weights load from a single memory-mapped file, a fixed
// header followed by the two networks' raw quantised weight arrays").
type Networks struct {
	Policy *PolicyNetwork
	Value  *ValueNetwork

	mapping mmap.MMap
	file    *os.File
}

// fileHeaderMagic tags the start of a valid network file, so a
// truncated or unrelated file fails fast instead of reading garbage
// weights.
const fileHeaderMagic = "CORVIDNET1"

const headerSize = 16 // magic, padded to a fixed width

// Load memory-maps path and overlays it as the two fixed-layout network
// structs, without copying the weight arrays into Go-managed memory
// (spec.md §7, grounded on github.com/edsrzf/mmap-go's Map API). Load
// returns an error if the file's size does not match the compiled
// layout exactly — a stale or foreign network file is never silently
// tolerated; MustLoad turns that error into a fatal exit.
func Load(path string) (*Networks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nn: open network file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nn: mmap network file: %w", err)
	}

	want := headerSize + int(unsafe.Sizeof(PolicyNetwork{})) + int(unsafe.Sizeof(ValueNetwork{}))
	if len(m) != want {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("nn: network file %q is %d bytes, want %d for this build's layout", path, len(m), want)
	}
	if string(m[:len(fileHeaderMagic)]) != fileHeaderMagic {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("nn: network file %q missing header magic %q", path, fileHeaderMagic)
	}

	policyOff := headerSize
	valueOff := policyOff + int(unsafe.Sizeof(PolicyNetwork{}))

	policy := (*PolicyNetwork)(unsafe.Pointer(&m[policyOff]))
	value := (*ValueNetwork)(unsafe.Pointer(&m[valueOff]))

	return &Networks{
		Policy:  policy,
		Value:   value,
		mapping: m,
		file:    f,
	}, nil
}

// MustLoad is Load, but fatal on error, the startup-path convention
// spec.md §7 specifies for a malformed network file ("fatal at
// startup, never at query time").
func MustLoad(path string) *Networks {
	n, err := Load(path)
	if err != nil {
		panic(err)
	}
	return n
}

// Close unmaps the network file and closes the underlying descriptor,
// reporting both failures if unmapping and closing each fail rather than
// masking the second behind the first.
func (n *Networks) Close() error {
	var errs error
	if err := n.mapping.Unmap(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := n.file.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}
