package tablet

import (
	"fmt"

	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/fxamacker/cbor/v2"
)

// The persisted aggregate is encoded deterministically so identical states
// produce identical bytes on every surface.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString

	var err error
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("tablet: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("tablet: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeState(s notice.State) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("cannot encode notice state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (notice.State, error) {
	var s notice.State
	if err := decMode.Unmarshal(data, &s); err != nil {
		return notice.State{}, fmt.Errorf("cannot decode notice state: %w", err)
	}
	if err := checkStatuses(s); err != nil {
		return notice.State{}, fmt.Errorf("cannot decode notice state: %w", err)
	}
	return s, nil
}

func checkStatuses(s notice.State) error {
	for _, n := range s.Orders {
		if noticestatus.ByName(n.Status) == nil {
			return fmt.Errorf("notice %s has unknown status %q", n.ID, n.Status)
		}
	}
	return nil
}
