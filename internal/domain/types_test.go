package domain

import "testing"

func TestParseSeatID(t *testing.T) {
	tests := []struct {
		in      string
		row     int
		column  string
		wantErr bool
	}{
		{"12A", 12, "A", false},
		{"1F", 1, "F", false},
		{"30C", 30, "C", false},
		{"A12", 0, "", true},
		{"12", 0, "", true},
		{"0A", 0, "", true},
		{"A", 0, "", true},
		{"", 0, "", true},
		{"12a", 0, "", true},
	}

	for _, tt := range tests {
		row, column, err := ParseSeatID(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseSeatID(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSeatID(%q): %v", tt.in, err)
		}
		if row != tt.row || column != tt.column {
			t.Fatalf("ParseSeatID(%q) = (%d, %q), want (%d, %q)",
				tt.in, row, column, tt.row, tt.column)
		}
	}
}

func TestCategoryForColumn(t *testing.T) {
	tests := []struct {
		column string
		want   SeatCategory
	}{
		{"A", SeatWindow},
		{"F", SeatWindow},
		{"C", SeatAisle},
		{"D", SeatAisle},
		{"B", SeatMiddle},
		{"E", SeatMiddle},
	}

	for _, tt := range tests {
		if got := CategoryForColumn(tt.column); got != tt.want {
			t.Fatalf("CategoryForColumn(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}
