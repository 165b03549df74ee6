package recio

// arena stores copies of records back to back so a group can outlive the
// child records it was built from. Its contents are valid until reset.
type arena struct {
	data []byte
	ends []int
	recs []Record
}

func (a *arena) reset() {
	a.data = a.data[:0]
	a.ends = a.ends[:0]
	a.recs = a.recs[:0]
}

func (a *arena) len() int { return len(a.ends) }

func (a *arena) add(data []byte, tag int) {
	a.data = append(a.data, data...)
	a.ends = append(a.ends, len(a.data))
	a.recs = append(a.recs, Record{Tag: tag})
}

func (a *arena) at(i int) Record {
	begin := 0
	if i > 0 {
		begin = a.ends[i-1]
	}
	end := a.ends[i]
	return Record{Data: a.data[begin:end:end], Tag: a.recs[i].Tag}
}

// records returns the stored records. Slices are resolved here because
// appends may have moved the backing array.
func (a *arena) records() []Record {
	for i := range a.recs {
		a.recs[i] = a.at(i)
	}
	return a.recs
}
