package gauge

// Bands are descending percent breakpoints. A percent at or above Bands[i]
// and below Bands[i-1] falls in band i; anything below the last breakpoint
// falls in band len(Bands).
type Bands []float64

// Index returns the band a percentage falls in.
func (b Bands) Index(percent float64) int {
	for i, edge := range b {
		if percent >= edge {
			return i
		}
	}
	return len(b)
}

// BandWatcher reports band crossings of a gauge. Re-observing the same band
// is silent.
type BandWatcher struct {
	bands    Bands
	current  int
	onChange func(band int, percent float64)
	stop     func()
}

// WatchBands subscribes to g and calls fn whenever the band of its displayed
// value changes. fn is also called once immediately with the starting band.
func WatchBands(g *Gauge, bands Bands, fn func(band int, percent float64)) *BandWatcher {
	w := &BandWatcher{bands: bands, current: -1, onChange: fn}
	w.observe(g.Current())
	w.stop = g.OnChange(w.observe)
	return w
}

// Band returns the last reported band.
func (w *BandWatcher) Band() int { return w.current }

// Close stops observing the gauge.
func (w *BandWatcher) Close() {
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

func (w *BandWatcher) observe(v float64) {
	p := Percent(v)
	band := w.bands.Index(p)
	if band == w.current {
		return
	}
	w.current = band
	if w.onChange != nil {
		w.onChange(band, p)
	}
}
