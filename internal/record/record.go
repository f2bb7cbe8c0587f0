// Package record defines the sample records shardsort generates, writes
// to shard files and sorts in memory.
//
// A Record is a small tagged variant over a closed set of kinds. Once
// generated it is never modified; its canonical text (String) is the unit
// stored in shard files and in the keyed store.
package record

import (
	"fmt"
	"math/rand/v2"
)

// Kind identifies which variant a Record holds.
type Kind string

const (
	// KindPhone marks a Record carrying a Phone.
	KindPhone Kind = "phone"
	// KindManufacturer marks a Record carrying a Manufacturer.
	KindManufacturer Kind = "manufacturer"
)

// Text prefixes of the canonical representation.
const (
	PhonePrefix        = "Phone:"
	ManufacturerPrefix = "Manufacturer:"
)

// Phone is a generated phone.
type Phone struct {
	ID           int
	Model        string
	SerialNumber string
	PhoneType    string
}

// Manufacturer is a generated manufacturer.
type Manufacturer struct {
	ID             int
	Name           string
	Address        string
	IsChildCompany bool
}

// Record holds exactly one of Phone or Manufacturer, selected by Kind.
type Record struct {
	Kind         Kind
	Phone        *Phone
	Manufacturer *Manufacturer
	text         string
}

// NewPhone wraps p in a Record.
func NewPhone(p Phone) Record {
	r := Record{Kind: KindPhone, Phone: &p}
	r.text = fmt.Sprintf("%s Model=%s, SN=%s, Type=%s", PhonePrefix, p.Model, p.SerialNumber, p.PhoneType)
	return r
}

// NewManufacturer wraps m in a Record.
func NewManufacturer(m Manufacturer) Record {
	r := Record{Kind: KindManufacturer, Manufacturer: &m}
	r.text = fmt.Sprintf("%s Name=%s, Address=%s", ManufacturerPrefix, m.Name, m.Address)
	return r
}

// String returns the canonical one-line representation, e.g.
// "Phone: Model=Model_1, SN=SN_1000, Type=Smartphone".
func (r Record) String() string {
	return r.text
}

// Strings maps records to their canonical representations.
func Strings(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String()
	}
	return out
}

// Generate returns phones+manufacturers records in an order shuffled by
// seed. Phone i (0-based) is Model_<i+1> / SN_<1000+i>; manufacturer i is
// Manufacturer_<i+1> / Address_<i+1>. The same arguments always produce
// the same sequence.
func Generate(phones, manufacturers int, seed int64) []Record {
	if phones < 0 {
		phones = 0
	}
	if manufacturers < 0 {
		manufacturers = 0
	}

	records := make([]Record, 0, phones+manufacturers)
	for i := 0; i < phones; i++ {
		phoneType := "Landline"
		if i%2 == 0 {
			phoneType = "Smartphone"
		}
		records = append(records, NewPhone(Phone{
			ID:           i + 1,
			Model:        fmt.Sprintf("Model_%d", i+1),
			SerialNumber: fmt.Sprintf("SN_%d", 1000+i),
			PhoneType:    phoneType,
		}))
	}
	for i := 0; i < manufacturers; i++ {
		records = append(records, NewManufacturer(Manufacturer{
			ID:             i + 1,
			Name:           fmt.Sprintf("Manufacturer_%d", i+1),
			Address:        fmt.Sprintf("Address_%d", i+1),
			IsChildCompany: i%2 == 0,
		}))
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	return records
}

// Partition splits records into n consecutive batches of at most perShard
// records each. Batches past the end of records are empty.
func Partition(records []Record, n, perShard int) [][]Record {
	if n < 0 {
		n = 0
	}
	if perShard < 0 {
		perShard = 0
	}
	batches := make([][]Record, n)
	for i := range batches {
		lo := i * perShard
		hi := lo + perShard
		if lo > len(records) {
			lo = len(records)
		}
		if hi > len(records) {
			hi = len(records)
		}
		batches[i] = records[lo:hi:hi]
	}
	return batches
}
