package redis

import "fmt"

const ns = "skyhold:v1"

func KeySeatMap(flightID string) string {
	return fmt.Sprintf("%s:flight:%s:seatmap", ns, flightID)
}

func KeyIdemHold(flightID, seatID, idemKey string) string {
	return fmt.Sprintf("%s:idem:holds:%s:%s:%s", ns, flightID, seatID, idemKey)
}
