package shardmap

import (
	"fmt"

	"github.com/google/uuid"
)

// Address identifies one routable shard endpoint: the storage node it
// currently lives on plus its shard uuid, per spec.md §6's wire/framing
// contract ("addresses containing (ip, port, uuid)").
type Address struct {
	IP   string
	Port uint16
	UUID uuid.UUID
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d/%s", a.IP, a.Port, a.UUID)
}

func (a Address) IsZero() bool {
	return a.IP == "" && a.Port == 0 && a.UUID == uuid.Nil
}
