package titanvolume

import "testing"

func TestSectorNumRoundTrip(t *testing.T) {
	cases := []struct {
		index uint32
		r     replica
	}{
		{0, replicaPrimary},
		{0, replicaSecondary},
		{1234, replicaPrimary},
		{1234, replicaSecondary},
		{0x7fffffff, replicaSecondary},
	}
	for _, tc := range cases {
		n := sectorNum(tc.index, tc.r)
		gotIndex, gotReplica := splitSectorNum(n)
		if gotIndex != tc.index || gotReplica != tc.r {
			t.Errorf("sectorNum(%d, %v) -> split = (%d, %v), want (%d, %v)",
				tc.index, tc.r, gotIndex, gotReplica, tc.index, tc.r)
		}
	}
}

func TestReplicaOther(t *testing.T) {
	if replicaPrimary.other() != replicaSecondary {
		t.Fatal("primary.other() != secondary")
	}
	if replicaSecondary.other() != replicaPrimary {
		t.Fatal("secondary.other() != primary")
	}
}

func TestSectorTagForReservesZeroForHeader(t *testing.T) {
	if sectorTagFor(sectorNum(0, replicaPrimary)) == headerSectorTag {
		t.Fatal("sector 0's tag collides with the header's tag")
	}
}

func TestRoundupUint64(t *testing.T) {
	cases := []struct{ num, mod, want uint64 }{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
	}
	for _, tc := range cases {
		if got := roundupUint64(tc.num, tc.mod); got != tc.want {
			t.Errorf("roundupUint64(%d, %d) = %d, want %d", tc.num, tc.mod, got, tc.want)
		}
	}
}

func TestLayoutOffsetsDoNotOverlap(t *testing.T) {
	l := newLayout(4096, 16)

	header := uint64(0)
	primaryMAC := l.replicaBase(replicaPrimary)
	primaryData := l.dataOffset(0, replicaPrimary)
	secondaryMAC := l.replicaBase(replicaSecondary)
	secondaryData := l.dataOffset(0, replicaSecondary)

	if !(header < primaryMAC && primaryMAC < primaryData && primaryData < secondaryMAC && secondaryMAC < secondaryData) {
		t.Fatalf("layout regions out of order: header=%d primaryMAC=%d primaryData=%d secondaryMAC=%d secondaryData=%d",
			header, primaryMAC, primaryData, secondaryMAC, secondaryData)
	}

	for i := uint32(0); i < 16; i++ {
		dataEnd := l.dataOffset(i, replicaPrimary) + uint64(l.sectorSize)
		if dataEnd > secondaryMAC {
			t.Fatalf("sector %d's primary data region overruns the secondary replica", i)
		}
	}

	if l.totalDeviceSize() != uint64(l.sectorSize)+2*(l.macTableSize+l.volumeSize) {
		t.Fatal("totalDeviceSize formula mismatch")
	}
}

func TestMacOffsetsAreDistinctPerSector(t *testing.T) {
	l := newLayout(4096, 16)
	seen := map[uint64]bool{}
	for i := uint32(0); i < 16; i++ {
		for _, r := range []replica{replicaPrimary, replicaSecondary} {
			off := l.macOffset(i, r)
			if seen[off] {
				t.Fatalf("duplicate mac offset %d for sector %d replica %v", off, i, r)
			}
			seen[off] = true
		}
	}
}
