package dap

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeInfo(t *testing.T) {
	tests := []struct {
		name string
		id   byte
		want []byte
	}{
		{"vendor", InfoVendor, []byte{0x00, 0x01}},
		{"product", InfoProduct, []byte{0x00, 0x02}},
		{"serial", InfoSerial, []byte{0x00, 0x03}},
		{"firmware", InfoFirmware, []byte{0x00, 0x04}},
		{"packet size", InfoPacketSize, []byte{0x00, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeInfo(tt.id); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeInfo(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		want    []byte
		wantErr bool
	}{
		{name: "string", resp: []byte{0x00, 0x04, 'T', 'e', 's', 't'}, want: []byte("Test")},
		{name: "packet size", resp: []byte{0x00, 0x02, 0x40, 0x00}, want: []byte{0x40, 0x00}},
		{name: "empty", resp: []byte{0x00, 0x00}, want: []byte{}},
		{name: "too short", resp: []byte{0x00}, wantErr: true},
		{name: "wrong command", resp: []byte{0x01, 0x04, 'T', 'e', 's', 't'}, wantErr: true},
		{name: "truncated", resp: []byte{0x00, 0x10, 'T', 'e', 's', 't'}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInfo(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeConnect(t *testing.T) {
	if port, err := DecodeConnect([]byte{0x02, PortSWD}); err != nil || port != PortSWD {
		t.Errorf("DecodeConnect(SWD) = %d, %v", port, err)
	}
	if _, err := DecodeConnect([]byte{0x02, 0x00}); !errors.Is(err, ErrStatus) {
		t.Errorf("refused connect: err = %v, want ErrStatus", err)
	}
	if _, err := DecodeConnect([]byte{0x03, 0x01}); err == nil {
		t.Error("expected error for wrong command id")
	}
}

func TestEncodeSWJ(t *testing.T) {
	if got, want := EncodeSWJClock(4_000_000), []byte{0x11, 0x00, 0x09, 0x3D, 0x00}; !bytes.Equal(got, want) {
		t.Errorf("EncodeSWJClock() = % X, want % X", got, want)
	}

	got := EncodeSWJSequence(51, ones)
	if len(got) != 2+7 || got[1] != 51 {
		t.Errorf("EncodeSWJSequence(51) = % X", got)
	}
	got = EncodeSWJSequence(16, []byte{0x9E, 0xE7, 0xFF})
	if want := []byte{0x12, 16, 0x9E, 0xE7}; !bytes.Equal(got, want) {
		t.Errorf("EncodeSWJSequence(16) = % X, want % X", got, want)
	}
}

func TestEncodeTransferConfigure(t *testing.T) {
	got := EncodeTransferConfigure(0, 64, 0)
	want := []byte{0x04, 0x00, 0x40, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTransferConfigure() = % X, want % X", got, want)
	}
}

func TestTransferRoundTrip(t *testing.T) {
	xfers := []Transfer{
		{AP: true, Addr: APTAR, Value: RegDHCSR},
		{AP: true, Read: true, Addr: APDRW},
		{Read: true, Addr: CtrlStat},
	}
	cmd := EncodeTransfer(xfers)
	want := []byte{
		0x05, 0x00, 0x03,
		0x05, 0xF0, 0xED, 0x00, 0xE0, // AP write TAR
		0x0F,                         // AP read DRW
		0x06,                         // DP read CTRL/STAT
	}
	if !bytes.Equal(cmd, want) {
		t.Fatalf("EncodeTransfer() = % X, want % X", cmd, want)
	}

	resp := []byte{0x05, 0x03, AckOK, 0x01, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0xF0}
	vals, err := DecodeTransfer(resp, xfers)
	if err != nil {
		t.Fatalf("DecodeTransfer() error = %v", err)
	}
	if len(vals) != 2 || vals[0] != 0x00030001 || vals[1] != 0xF0000000 {
		t.Errorf("DecodeTransfer() = %#x", vals)
	}
}

func TestDecodeTransferErrors(t *testing.T) {
	xfers := []Transfer{{Read: true, Addr: DPIDR}, {Read: true, Addr: CtrlStat}}

	_, err := DecodeTransfer([]byte{0x05, 0x01, AckFault}, xfers)
	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if te.Done != 1 || te.Error() != "dap: transfer 1 failed: FAULT" {
		t.Errorf("TransferError = %+v (%q)", te, te.Error())
	}

	if _, err := DecodeTransfer([]byte{0x05, 0x02, AckOK, 0x77, 0x14}, xfers); err == nil {
		t.Error("expected error for truncated read data")
	}
}

func TestDecodeStatusResponses(t *testing.T) {
	tests := []struct {
		name    string
		decode  func([]byte) error
		resp    []byte
		wantErr bool
	}{
		{"disconnect ok", DecodeDisconnect, []byte{0x03, 0x00}, false},
		{"disconnect failed", DecodeDisconnect, []byte{0x03, 0xFF}, true},
		{"clock ok", DecodeSWJClock, []byte{0x11, 0x00}, false},
		{"clock short", DecodeSWJClock, []byte{0x11}, true},
		{"sequence wrong id", DecodeSWJSequence, []byte{0x11, 0x00}, true},
		{"swd configure ok", DecodeSWDConfigure, []byte{0x13, 0x00}, false},
		{"host status ok", DecodeHostStatus, []byte{0x01, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode(tt.resp); (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeResetTarget(t *testing.T) {
	ran, err := DecodeResetTarget([]byte{0x0A, 0x00, 0x01})
	if err != nil || !ran {
		t.Errorf("DecodeResetTarget() = %v, %v", ran, err)
	}
	ran, err = DecodeResetTarget([]byte{0x0A, 0x00, 0x00})
	if err != nil || ran {
		t.Errorf("DecodeResetTarget(no sequence) = %v, %v", ran, err)
	}
	if _, err := DecodeResetTarget([]byte{0x0A, 0xFF}); !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}

func TestDecodeDPIDR(t *testing.T) {
	tests := []struct {
		raw      uint32
		designer string
		version  uint8
		partNo   uint8
		minDP    bool
	}{
		{0x2BA01477, "ARM", 1, 0xBA, false},
		{0x0BC12477, "ARM", 2, 0xBC, true},
		{0x00000041, "STMicroelectronics", 0, 0, false},
	}
	for _, tt := range tests {
		id := DecodeDPIDR(tt.raw)
		if id.DesignerName() != tt.designer || id.Version != tt.version || id.PartNo != tt.partNo || id.MinDP != tt.minDP {
			t.Errorf("DecodeDPIDR(%#x) = %+v (%s)", tt.raw, id, id.DesignerName())
		}
	}
	if got := DecodeDPIDR(0x00000003).DesignerName(); got != "Unknown (bank 1, 0x01)" {
		t.Errorf("unknown designer name = %q", got)
	}
}
