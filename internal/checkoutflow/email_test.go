package checkoutflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDonorEmail(t *testing.T) {
	tests := []struct {
		name  string
		donor Donor
		want  string
	}{
		{"email wins", Donor{FirstName: "Ama", LastName: "Mensah", Email: " ama@example.com ", Phone: "0241234567"}, "ama@example.com"},
		{"phone digits", Donor{FirstName: "Ama", LastName: "Mensah", Phone: "+233 24-123-4567"}, "233241234567@donors.invalid"},
		{"short phone falls to names", Donor{FirstName: "Ama", LastName: "Mensah", Phone: "12345"}, "ama.mensah@donors.invalid"},
		{"names slugged", Donor{FirstName: " Kofi Jnr ", LastName: "Ofori-Atta"}, "kofi-jnr.ofori-atta@donors.invalid"},
		{"first only", Donor{FirstName: "Esi"}, "esi@donors.invalid"},
		{"nothing usable", Donor{FirstName: "!!"}, "donor@donors.invalid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DonorEmail(tc.donor))
		})
	}
}

func TestDonorContact(t *testing.T) {
	assert.Equal(t, "ama@example.com", Donor{Email: "ama@example.com", Phone: "0241234567"}.Contact())
	assert.Equal(t, "0241234567", Donor{Phone: " 0241234567 "}.Contact())
	assert.Empty(t, Donor{}.Contact())
}
