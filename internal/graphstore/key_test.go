package graphstore

import "testing"

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("示例大学", "信息学院", "软件工程")
	b := DeriveKey("  示例大学 ", "信息学院\t", " 软件工程")
	if a.ID != b.ID {
		t.Fatalf("trimmed inputs should share a key: %q vs %q", a.ID, b.ID)
	}
	if len(a.ID) != 32 {
		t.Fatalf("key length: want=32 got=%d", len(a.ID))
	}
	if b.School != "示例大学" || b.Major != "软件工程" {
		t.Fatalf("key parts not trimmed: %+v", b)
	}

	cases := []Key{
		DeriveKey("示例大学", "信息学院", "计算机科学"),
		DeriveKey("示例大学", "信息", "学院软件工程"),
		DeriveKey("示例大学信息学院", "", "软件工程"),
	}
	for _, k := range cases {
		if k.ID == a.ID {
			t.Fatalf("distinct triple collided: %+v", k)
		}
	}
}
