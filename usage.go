package memory

import "fmt"

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}

// FormatBytes renders a byte count with binary prefixes, capped at YiB.
// Zero is special-cased so empty reports stay terse.
func FormatBytes(size float64) string {
	if size == 0 {
		return "0 B"
	}
	unit := 0
	for unit < len(byteUnits)-1 && size >= 1024 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, byteUnits[unit])
}

// Usage accumulates a byte size together with the number of objects that
// contributed to it. Merging is associative and commutative, so the order
// a traversal visits objects in never changes the final total.
type Usage struct {
	Size  uint64 `json:"size"`
	Count uint64 `json:"count"`
}

// AddObject charges one object of the given shallow size.
func (u *Usage) AddObject(size uint64) {
	u.Size += size
	u.Count++
}

// Merge folds another Usage into this one.
func (u *Usage) Merge(other Usage) {
	u.Size += other.Size
	u.Count += other.Count
}

func (u Usage) String() string {
	return fmt.Sprintf("%s in %d allocations", FormatBytes(float64(u.Size)), u.Count)
}
