package optimizer

// Classification splits SKUs into scarce and abundant.
type Classification struct {
	scarce   []bool
	scarceI  []int
	abundant []int
}

// Classify marks a SKU scarce when its stock cannot give every target store
// max(minPerStore, 1) units. With extendSiblings, SKUs of the same style that
// share the color or the size of a scarce SKU are marked scarce as well.
func Classify(reg *Registry, minPerStore int, extendSiblings bool) *Classification {
	if minPerStore < 1 {
		minPerStore = 1
	}
	threshold := reg.NumTargetStores() * minPerStore

	scarce := make([]bool, reg.NumSKUs())
	for i := 0; i < reg.NumSKUs(); i++ {
		scarce[i] = reg.SKU(i).Stock < threshold
	}

	if extendSiblings {
		base := append([]bool(nil), scarce...)
		for i := 0; i < reg.NumSKUs(); i++ {
			if !base[i] || reg.SKU(i).Style == "" {
				continue
			}
			s := reg.SKU(i)
			for k := 0; k < reg.NumSKUs(); k++ {
				o := reg.SKU(k)
				if k == i || o.Style != s.Style {
					continue
				}
				sameColor := o.Color == s.Color && o.Size != s.Size
				sameSize := o.Size == s.Size && o.Color != s.Color
				if sameColor || sameSize {
					scarce[k] = true
				}
			}
		}
	}

	c := &Classification{scarce: scarce}
	for i, s := range scarce {
		if s {
			c.scarceI = append(c.scarceI, i)
		} else {
			c.abundant = append(c.abundant, i)
		}
	}
	return c
}

// IsScarce reports whether SKU i is scarce.
func (c *Classification) IsScarce(i int) bool { return c.scarce[i] }

// Scarce returns scarce SKU indices in registry order.
func (c *Classification) Scarce() []int { return append([]int(nil), c.scarceI...) }

// Abundant returns abundant SKU indices in registry order.
func (c *Classification) Abundant() []int { return append([]int(nil), c.abundant...) }
