package badger

import (
	"encoding/binary"

	"github.com/pagecraft/pagecraft/pkg/models"
)

var (
	orderPrefix = []byte("o/")
	slugPrefix  = []byte("s/")
)

func recordPrefix(c models.Collection) []byte {
	return []byte("r/" + string(c) + "/")
}

func recordKey(c models.Collection, id models.ID) []byte {
	return binary.BigEndian.AppendUint64(recordPrefix(c), uint64(id))
}

func idFromRecordKey(key []byte) models.ID {
	return models.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

func orderKey(order int, id models.ID) []byte {
	k := append([]byte{}, orderPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(order))
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

func orderSeekKey(order int) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, orderPrefix...), uint64(order))
}

// parseOrderKey splits an index key into its rank and template id.
func parseOrderKey(key []byte) (int, models.ID) {
	rest := key[len(orderPrefix):]
	return int(binary.BigEndian.Uint64(rest[:8])), models.ID(binary.BigEndian.Uint64(rest[8:16]))
}

func slugKey(slug string) []byte {
	return append(append([]byte{}, slugPrefix...), slug...)
}

func sequenceKey(c models.Collection) []byte {
	return []byte("seq/" + string(c))
}

func encodeID(id models.ID) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

func decodeID(b []byte) models.ID {
	return models.ID(binary.BigEndian.Uint64(b))
}
