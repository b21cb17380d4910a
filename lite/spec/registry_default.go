package spec

// NewDefaultRegistry builds a Registry seeded with the node-profile class
// plus a small representative set of device classes. It exists to
// demonstrate min/max- and capability-driven validation end to end; a
// production deployment would seed a Registry from the full ECHONET Lite
// appendix instead.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(nodeProfileClassSpec())
	r.Register(homeAirConditionerClassSpec())
	r.Register(singleFunctionLightingClassSpec())
	return r
}

// mandatoryPropertyMapSpecs are the three property-map properties every
// ECHONET Lite object carries, independent of class.
func mandatoryPropertyMapSpecs() []PropertySpec {
	return []PropertySpec{
		{EPC: 0x9D, MinSize: 1, MaxSize: 17, CanGet: true}, // status announcement property map
		{EPC: 0x9E, MinSize: 1, MaxSize: 17, CanGet: true}, // set property map
		{EPC: 0x9F, MinSize: 1, MaxSize: 17, CanGet: true}, // get property map
	}
}

func nodeProfileClassSpec() ClassSpec {
	cs := NewClassSpec(0x0E, 0xF0, "Node Profile",
		PropertySpec{EPC: 0x80, MinSize: 1, MaxSize: 1, CanGet: true, CanAnnounce: true}, // operating status
		PropertySpec{EPC: 0x82, MinSize: 4, MaxSize: 4, CanGet: true},                    // version information
		PropertySpec{EPC: 0x83, MinSize: 1, CanGet: true},                                // identification number
		PropertySpec{EPC: 0x89, MinSize: 2, MaxSize: 2, CanGet: true, CanAnnounce: true},  // fault content
		PropertySpec{EPC: 0xBF, MinSize: 1, CanGet: true, CanSet: true},                  // individual id info
		PropertySpec{EPC: 0xD3, MinSize: 3, MaxSize: 3, CanGet: true},                     // self-node instances
		PropertySpec{EPC: 0xD4, MinSize: 2, MaxSize: 2, CanGet: true},                     // self-node classes
		PropertySpec{EPC: 0xD5, MinSize: 1, MaxSize: 253, CanGet: true, CanAnnounce: true}, // instance list notification
		PropertySpec{EPC: 0xD6, MinSize: 1, MaxSize: 253, CanGet: true},                   // self-node instance list S
		PropertySpec{EPC: 0xD7, MinSize: 1, MaxSize: 17, CanGet: true},                     // self-node class list S
	)
	for _, ps := range mandatoryPropertyMapSpecs() {
		cs.properties[ps.EPC] = ps
	}
	return cs
}

func homeAirConditionerClassSpec() ClassSpec {
	inRange := func(min, max int) func([]byte) bool {
		return func(edt []byte) bool {
			if len(edt) != 1 {
				return false
			}
			v := int(edt[0])
			return v >= min && v <= max
		}
	}
	cs := NewClassSpec(0x01, 0x30, "Home Air Conditioner",
		PropertySpec{EPC: 0x80, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, CanAnnounce: true}, // operation status
		PropertySpec{EPC: 0xA0, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true},                    // air volume setting
		PropertySpec{EPC: 0xA3, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true},                    // air direction swing setting
		PropertySpec{EPC: 0xB0, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, CanAnnounce: true}, // operation mode setting
		PropertySpec{EPC: 0xB3, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, CanAnnounce: true, AcceptValue: inRange(0, 50)},   // temperature setting
		PropertySpec{EPC: 0xB4, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, AcceptValue: inRange(0, 100)},                     // relative humidity setting
		PropertySpec{EPC: 0xBA, MinSize: 1, MaxSize: 1, CanGet: true, CanAnnounce: true},                                              // current room humidity
		PropertySpec{EPC: 0xBB, MinSize: 1, MaxSize: 1, CanGet: true, CanAnnounce: true},                                              // current room temperature
		PropertySpec{EPC: 0xBE, MinSize: 1, MaxSize: 1, CanGet: true},                                                                 // current outside temperature
		PropertySpec{EPC: 0xC1, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true},                                                   // humidification mode setting
	)
	for _, ps := range mandatoryPropertyMapSpecs() {
		cs.properties[ps.EPC] = ps
	}
	return cs
}

func singleFunctionLightingClassSpec() ClassSpec {
	cs := NewClassSpec(0x02, 0x91, "Single Function Lighting",
		PropertySpec{EPC: 0x80, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, CanAnnounce: true}, // operation status
		PropertySpec{EPC: 0xB0, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true, CanAnnounce: true}, // illuminance level
	)
	for _, ps := range mandatoryPropertyMapSpecs() {
		cs.properties[ps.EPC] = ps
	}
	return cs
}
