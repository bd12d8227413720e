package risk

import "strings"

// DeviceClass identifies the kind of transmitter behind an identity code
type DeviceClass string

const (
	DeviceVessel      DeviceClass = "vessel"
	DeviceBaseStation DeviceClass = "base_station"
	DeviceAtoN        DeviceClass = "aton"
	DeviceSARAircraft DeviceClass = "sar_aircraft"
	DeviceSART        DeviceClass = "sart"
	DeviceMOB         DeviceClass = "mob"
	DeviceEPIRB       DeviceClass = "epirb"
)

// Identity prefixes, most specific first. SART, MOB and EPIRB devices are
// distress beacons and always raise a danger alarm.
var devicePrefixes = []struct {
	prefix string
	class  DeviceClass
}{
	{"970", DeviceSART},
	{"972", DeviceMOB},
	{"974", DeviceEPIRB},
	{"111", DeviceSARAircraft},
	{"99", DeviceAtoN},
	{"00", DeviceBaseStation},
}

// DeviceClassOf maps an identity code to its device class
func DeviceClassOf(id string) DeviceClass {
	for _, p := range devicePrefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.class
		}
	}
	return DeviceVessel
}
