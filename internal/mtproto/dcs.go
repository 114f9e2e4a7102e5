package mtproto

import "fmt"

// Production data centers. The server references them by ID in migration
// signals; the client needs the resolved address to rebind.
var knownDataCenters = map[int]DataCenter{
	1: {ID: 1, Address: "149.154.175.53", Port: 443},
	2: {ID: 2, Address: "149.154.167.51", Port: 443},
	3: {ID: 3, Address: "149.154.175.100", Port: 443},
	4: {ID: 4, Address: "149.154.167.91", Port: 443},
	5: {ID: 5, Address: "91.108.56.130", Port: 443},
}

// ResolveDataCenter maps a data-center ID from a migration signal to its
// endpoint.
func ResolveDataCenter(id int) (DataCenter, error) {
	dc, ok := knownDataCenters[id]
	if !ok {
		return DataCenter{}, fmt.Errorf("unknown data center %d", id)
	}
	return dc, nil
}
