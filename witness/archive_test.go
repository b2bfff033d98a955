package witness

import (
	"os"
	"testing"
)

func TestArchiveAppendAndRead(t *testing.T) {
	dir, err := os.MkdirTemp("", "witness-archive-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	a, err := OpenArchive(dir, "blocks")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	p1 := sampleParcel()
	p2 := sampleParcel()
	p2.BlockHashes[0].Number = 101

	if err := a.Append(p1); err != nil {
		t.Fatal(err)
	}
	if err := a.Append(p2); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 2 {
		t.Fatalf("expected 2 archived parcels, got %d", a.Len())
	}

	got, err := a.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.BlockHashes[0].Number != 101 {
		t.Fatalf("expected parcel at position 1 to carry block 101, got %d", got.BlockHashes[0].Number)
	}
}
