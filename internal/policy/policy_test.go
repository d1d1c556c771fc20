package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type oddRoutesOnly struct{}

func (oddRoutesOnly) IncludeRoute(routeID int, _ string) bool { return routeID%2 == 1 }

type shoutingHeadsigns struct{}

func (shoutingHeadsigns) CleanHeadsign(h string) string { return h + "!" }

func TestBaseDefaults(t *testing.T) {
	var base Base

	assert.True(t, base.IncludeRoute(1, "A"))
	assert.True(t, base.IncludeTrip(2, "Downtown"))
	assert.Equal(t, "Downtown", base.CleanHeadsign("  Downtown  "))
	assert.Equal(t, 42, base.MapStopID(42))
	assert.Equal(t, "FF0000", base.NormalizeColor("#ff0000"))
	assert.Equal(t, 3600, base.CleanTimeSecs(3600))
}

func TestCompositeDelegation(t *testing.T) {
	p := Composite{
		Routes:   oddRoutesOnly{},
		Headsign: shoutingHeadsigns{},
	}

	// Supplied capabilities are used.
	assert.True(t, p.IncludeRoute(3, "A"))
	assert.False(t, p.IncludeRoute(4, "B"))
	assert.Equal(t, "Downtown!", p.CleanHeadsign("Downtown"))

	// Missing capabilities fall back to the base policy.
	assert.True(t, p.IncludeTrip(1, "anything"))
	assert.Equal(t, 7, p.MapStopID(7))
	assert.Equal(t, "00FF00", p.NormalizeColor("00ff00"))
}

func TestCompositeIsFullPolicy(t *testing.T) {
	var _ Policy = Composite{}
}
