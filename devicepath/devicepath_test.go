// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package devicepath

import (
	"bytes"
	"testing"
)

func pciNode() Node {
	return Node{
		Type:    TypeHardware,
		SubType: 0x01,
		Length:  6,
		Data:    []byte{0x00, 0x1f},
	}
}

func chainWithEnd(nodes ...Node) []byte {
	var buf []byte

	for _, n := range nodes {
		buf = append(buf, n.Bytes()...)
	}

	end := Node{Type: TypeEnd, SubType: SubTypeEndEntire, Length: 4}
	buf = append(buf, end.Bytes()...)

	return buf
}

func TestParseRoundTrip(t *testing.T) {
	raw := chainWithEnd(pciNode())

	nodes, size, err := Parse(raw)

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if size != len(raw) {
		t.Fatalf("size = %d, want %d", size, len(raw))
	}

	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}

	if !nodes[1].IsEnd() {
		t.Fatalf("last node is not End/EndEntire")
	}
}

func TestParseTruncated(t *testing.T) {
	raw := chainWithEnd(pciNode())

	if _, _, err := Parse(raw[:len(raw)-2]); err == nil {
		t.Fatalf("expected error on truncated chain")
	}
}

func TestParseInvalidLength(t *testing.T) {
	bad := []byte{TypeHardware, 0x01, 0x02, 0x00}

	if _, _, err := Parse(bad); err != ErrInvalidNode {
		t.Fatalf("err = %v, want ErrInvalidNode", err)
	}
}

func TestFormatHardwareTag(t *testing.T) {
	raw := chainWithEnd(pciNode())
	nodes, _, err := Parse(raw)

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := Format(nodes)

	if got != "PCI" {
		t.Fatalf("Format = %q, want %q", got, "PCI")
	}
}

func TestSynthesizeRoundTrip(t *testing.T) {
	dp := chainWithEnd(pciNode())
	nodes, _, err := Parse(dp)

	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := Synthesize(nodes, "vmlinuz")

	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	gotNodes, size, err := Parse(out)

	if err != nil {
		t.Fatalf("Parse(synthesized): %v", err)
	}

	if size != len(out) {
		t.Fatalf("size = %d, want %d", size, len(out))
	}

	if len(gotNodes) != 3 {
		t.Fatalf("got %d nodes, want 3 (pci, filepath, end)", len(gotNodes))
	}

	fp := gotNodes[1]

	if fp.Type != TypeMedia || fp.SubType != SubTypeFilePath {
		t.Fatalf("middle node is not a FilePath node: %+v", fp)
	}

	if got := decodeUTF16(fp.Data); got != "vmlinuz" {
		t.Fatalf("filepath name = %q, want %q", got, "vmlinuz")
	}

	if !gotNodes[2].IsEnd() {
		t.Fatalf("final node is not End/EndEntire")
	}

	// every length field is at least 4 and lengths sum to the full buffer
	sum := 0
	for _, n := range gotNodes {
		if n.Length < 4 {
			t.Fatalf("node length %d < 4", n.Length)
		}
		sum += int(n.Length)
	}

	if sum != len(out) {
		t.Fatalf("sum of lengths = %d, want %d", sum, len(out))
	}
}

func TestFindHardDriveGPT(t *testing.T) {
	var sig [16]byte
	copy(sig[:], bytes.Repeat([]byte{0x11}, 16))

	hd := Node{
		Type:    TypeMedia,
		SubType: SubTypeHardDrive,
		Length:  42,
	}

	data := make([]byte, 38)
	data[37] = SignatureTypeGPT
	copy(data[20:36], sig[:])
	hd.Data = data

	nodes := []Node{hd, {Type: TypeEnd, SubType: SubTypeEndEntire, Length: 4}}

	got, ok := FindHardDrive(nodes)

	if !ok {
		t.Fatalf("expected to find GPT hard drive node")
	}

	if got.SignatureType != SignatureTypeGPT {
		t.Fatalf("signature type = %d, want GPT", got.SignatureType)
	}

	if !bytes.Equal(got.Signature[:], sig[:]) {
		t.Fatalf("signature = %x, want %x", got.Signature, sig)
	}
}

func TestFindHardDriveNone(t *testing.T) {
	nodes := []Node{pciNode(), {Type: TypeEnd, SubType: SubTypeEndEntire, Length: 4}}

	if _, ok := FindHardDrive(nodes); ok {
		t.Fatalf("did not expect to find a hard drive node")
	}
}
