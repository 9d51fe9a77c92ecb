package protocol

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
)

func TestEncodeDecodeGameUpdate(t *testing.T) {
	cookie := uuid.New()
	in := GameUpdate{
		LastServerTick: 480,
		ActionTick:     485,
		Action:         game.WalkPlace(game.South),
	}
	data, err := Encode(7, 3, cookie, in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Number != 7 || env.Ack != 3 {
		t.Fatalf("envelope number/ack = %d/%d, want 7/3", env.Number, env.Ack)
	}
	if env.Cookie != cookie {
		t.Fatalf("cookie changed in transit")
	}
	got, ok := msg.(GameUpdate)
	if !ok {
		t.Fatalf("decoded %T, want GameUpdate", msg)
	}
	if got != in {
		t.Fatalf("decoded %+v, want %+v", got, in)
	}
}

func TestEncodeDecodeDelta(t *testing.T) {
	in := Delta{
		Tick:     1200,
		Checksum: 0xdeadbeefcafe,
		Entries: []eventlog.Entry{
			{Tick: 1180, Player: 0, Action: game.Walk(game.North)},
			{Tick: 1191, Player: 1, Action: game.Place()},
		},
	}
	data, err := Encode(1, 0, uuid.Nil, in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := msg.(Delta)
	if !ok {
		t.Fatalf("decoded %T, want Delta", msg)
	}
	if got.Tick != in.Tick || got.Checksum != in.Checksum {
		t.Fatalf("decoded header %+v, want %+v", got, in)
	}
	if len(got.Entries) != len(in.Entries) {
		t.Fatalf("decoded %d entries, want %d", len(got.Entries), len(in.Entries))
	}
	for i := range in.Entries {
		if got.Entries[i] != in.Entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got.Entries[i], in.Entries[i])
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	data, err := msgpack.Marshal(Envelope{Magic: 0x12345678, Kind: KindHello})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, _, err := Decode(data); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("Decode = %v, want ErrBadMagic", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := msgpack.Marshal(Envelope{Magic: Magic, Kind: 0xEE})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, _, err := Decode(data); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Decode = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, _, err := Decode([]byte{0xc1, 0x00, 0xff}); err == nil {
		t.Fatalf("garbage decoded without error")
	}
}

func TestSettingsSurviveTheWire(t *testing.T) {
	settings := game.DefaultSettings()
	settings.GameName = "friday night"
	settings.BombFuseMS = 2000

	data, err := Encode(1, 0, uuid.Nil, SettingsUpdate{Settings: settings})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := msg.(SettingsUpdate)
	if !ok {
		t.Fatalf("decoded %T, want SettingsUpdate", msg)
	}
	if got.Settings != settings {
		t.Fatalf("decoded settings %+v, want %+v", got.Settings, settings)
	}
}
