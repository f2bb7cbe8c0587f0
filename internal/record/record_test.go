package record

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordString verifies the canonical text of each kind.
func TestRecordString(t *testing.T) {
	p := NewPhone(Phone{ID: 1, Model: "Model_1", SerialNumber: "SN_1000", PhoneType: "Smartphone"})
	assert.Equal(t, KindPhone, p.Kind)
	assert.Equal(t, "Phone: Model=Model_1, SN=SN_1000, Type=Smartphone", p.String())

	m := NewManufacturer(Manufacturer{ID: 3, Name: "Manufacturer_3", Address: "Address_3"})
	assert.Equal(t, KindManufacturer, m.Kind)
	assert.Equal(t, "Manufacturer: Name=Manufacturer_3, Address=Address_3", m.String())
}

// TestGenerate checks counts, uniqueness, field derivation and determinism.
func TestGenerate(t *testing.T) {
	t.Run("counts and unique fields", func(t *testing.T) {
		records := Generate(10, 10, 42)
		require.Len(t, records, 20)

		seen := make(map[string]bool)
		var phones, manufacturers int
		for _, r := range records {
			assert.False(t, seen[r.String()], "duplicate record %s", r)
			seen[r.String()] = true
			switch r.Kind {
			case KindPhone:
				phones++
				require.NotNil(t, r.Phone)
				assert.Equal(t, fmt.Sprintf("Model_%d", r.Phone.ID), r.Phone.Model)
				assert.Equal(t, fmt.Sprintf("SN_%d", 999+r.Phone.ID), r.Phone.SerialNumber)
			case KindManufacturer:
				manufacturers++
				require.NotNil(t, r.Manufacturer)
				assert.Equal(t, fmt.Sprintf("Manufacturer_%d", r.Manufacturer.ID), r.Manufacturer.Name)
			}
		}
		assert.Equal(t, 10, phones)
		assert.Equal(t, 10, manufacturers)
	})

	t.Run("phone types alternate", func(t *testing.T) {
		for _, r := range Generate(4, 0, 1) {
			want := "Landline"
			if (r.Phone.ID-1)%2 == 0 {
				want = "Smartphone"
			}
			assert.Equal(t, want, r.Phone.PhoneType)
		}
	})

	t.Run("same seed same order", func(t *testing.T) {
		a := Strings(Generate(25, 25, 7))
		b := Strings(Generate(25, 25, 7))
		assert.Equal(t, a, b)
	})

	t.Run("shuffled", func(t *testing.T) {
		lines := Strings(Generate(25, 25, 7))
		ordered := Strings(Generate(25, 25, 7))
		Sort(ordered)
		assert.NotEqual(t, ordered, lines)
		assert.ElementsMatch(t, ordered, lines)
	})

	t.Run("negative counts", func(t *testing.T) {
		assert.Empty(t, Generate(-1, -5, 0))
	})
}

// TestPartition covers even splits, short tails and empty batches.
func TestPartition(t *testing.T) {
	records := Generate(7, 5, 3)

	batches := Partition(records, 3, 5)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Len(t, batches[2], 2)
	assert.Equal(t, records[5], batches[1][0])

	batches = Partition(records, 4, 5)
	assert.Len(t, batches[3], 0)

	assert.Len(t, Partition(records, 0, 5), 0)
}
