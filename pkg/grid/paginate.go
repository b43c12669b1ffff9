package grid

// PageSizes are the page sizes offered under every table.
var PageSizes = []int{10, 25, 100}

const DefaultPageSize = 10

type Page[E any] struct {
	Items  []E
	Number int // zero based
	Size   int
	Total  int
	Pages  int
}

func (p Page[E]) HasPrev() bool { return p.Number > 0 }
func (p Page[E]) HasNext() bool { return p.Number+1 < p.Pages }

// From and To are the one-based bounds of the page, for "11-20 of 42".
func (p Page[E]) From() int {
	if p.Total == 0 {
		return 0
	}
	return p.Number*p.Size + 1
}

func (p Page[E]) To() int {
	return p.Number*p.Size + len(p.Items)
}

// Paginate slices items into the requested page. Unknown sizes fall back to
// DefaultPageSize and out of range pages are clamped.
func Paginate[E any](items []E, number, size int) Page[E] {
	if !validPageSize(size) {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if number < 0 {
		number = 0
	}
	if number >= pages {
		number = pages - 1
	}
	start := number * size
	end := start + size
	if end > total {
		end = total
	}
	return Page[E]{Items: items[start:end], Number: number, Size: size, Total: total, Pages: pages}
}

func validPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}
