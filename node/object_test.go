package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echonet-core/lite"
	"echonet-core/lite/spec"
)

func TestDetailedObjectSeedsPropertiesFromSpec(t *testing.T) {
	cs := spec.NewClassSpec(0x01, 0x30, "Home Air Conditioner",
		spec.PropertySpec{EPC: 0x80, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true},
	)
	o := NewDetailedObject(lite.MakeEOJ(0x0130, 1), cs)

	require.True(t, o.IsDetailed())
	p, ok := o.Property(0x80)
	require.True(t, ok, "expected EPC 0x80 to be seeded")
	assert.True(t, p.Capabilities().CanSet)
}

func TestUndetailedObjectEnsureProperty(t *testing.T) {
	o := NewUndetailedObject(lite.MakeEOJ(0x0130, 1))
	require.False(t, o.IsDetailed())

	var changes []PropertiesChange
	o.Subscribe(func(c PropertiesChange) { changes = append(changes, c) })

	_, created := o.EnsureProperty(0x80, Capabilities{CanGet: true})
	require.True(t, created, "expected first EnsureProperty to create")
	_, created = o.EnsureProperty(0x80, Capabilities{CanGet: true})
	assert.False(t, created, "expected second EnsureProperty to be a no-op")

	require.Len(t, changes, 1)
	assert.True(t, changes[0].Added)
}

func TestApplyPropertyMapsResetsCapabilitiesAndMembership(t *testing.T) {
	o := NewUndetailedObject(lite.MakeEOJ(0x0130, 1))
	o.EnsureProperty(0x80, Capabilities{})
	o.EnsureProperty(0xFF, Capabilities{}) // will be dropped, absent from any map

	announce := lite.NewPropertyMap(0x80)
	set := lite.NewPropertyMap(0x80)
	get := lite.NewPropertyMap(0x80, 0x83)

	o.ApplyPropertyMaps(announce, set, get)

	p, ok := o.Property(0x80)
	require.True(t, ok, "EPC 0x80 should remain")
	caps := p.Capabilities()
	assert.True(t, caps.CanAnnounce && caps.CanSet && caps.CanGet, "caps = %+v, want all three set", caps)

	_, ok = o.Property(0x83)
	assert.True(t, ok, "EPC 0x83 should have been added from the get map")
	_, ok = o.Property(0xFF)
	assert.False(t, ok, "EPC 0xFF should have been dropped, absent from all three maps")
}
