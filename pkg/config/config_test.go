package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBasics(t *testing.T) {
	f, err := Parse(`
# top comment
[stepper_z]
endstop_pin: PC2
position_max = 250  # inline comment

[probe]
x_offset: -40
y_offset: -10
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sz, err := f.Section("stepper_z")
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	pin, _ := sz.Get("endstop_pin")
	if pin != "PC2" {
		t.Errorf("endstop_pin = %q, want PC2", pin)
	}
	if v, _ := sz.GetFloat("position_max"); v != 250 {
		t.Errorf("position_max = %v, want 250 (inline comment not stripped?)", v)
	}
	if !f.HasSection("probe") {
		t.Error("missing [probe]")
	}
	if f.HasSection("bltouch") {
		t.Error("unexpected [bltouch]")
	}
}

func TestParseMultilineValue(t *testing.T) {
	f, err := Parse(`
[auto_offset_z]
probe_points:
    45,45
    150,150
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sec, _ := f.Section("auto_offset_z")
	points, err := sec.GetPoints("probe_points")
	if err != nil {
		t.Fatalf("GetPoints: %v", err)
	}
	want := [][2]float64{{45, 45}, {150, 150}}
	if len(points) != 2 || points[0] != want[0] || points[1] != want[1] {
		t.Errorf("points = %v, want %v", points, want)
	}
}

func TestParseSaveConfigBlock(t *testing.T) {
	f, err := Parse(`
[probe]
x_offset: -40

#*# <---------------------- SAVE_CONFIG ---------------------->
#*# [probe]
#*# z_offset = 2.310
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sec, _ := f.Section("probe")
	if v, _ := sec.GetFloat("z_offset"); v != 2.31 {
		t.Errorf("z_offset from save block = %v, want 2.31", v)
	}
	if v, _ := sec.GetFloat("x_offset"); v != -40 {
		t.Errorf("x_offset = %v, want -40", v)
	}
}

func TestLoadWithInclude(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "printer.cfg")
	extra := filepath.Join(dir, "probe.cfg")

	if err := os.WriteFile(extra, []byte("[probe]\nx_offset: -40\ny_offset: -10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(main, []byte("[include probe.cfg]\n[stepper_z]\nendstop_pin: PC2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !f.HasSection("probe") || !f.HasSection("stepper_z") {
		t.Errorf("sections = %v", f.SectionNames())
	}
}

func TestSectionAccessorFallbacks(t *testing.T) {
	f, err := Parse("[s]\nspeed: 42.5\nenabled: yes\ncount: 3\nmode: Median\n")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := f.Section("s")

	if v, err := s.GetFloat("speed"); err != nil || v != 42.5 {
		t.Errorf("GetFloat(speed) = %v, %v", v, err)
	}
	if v, err := s.GetFloat("missing", 7.5); err != nil || v != 7.5 {
		t.Errorf("GetFloat fallback = %v, %v", v, err)
	}
	if _, err := s.GetFloat("missing"); err == nil {
		t.Error("GetFloat without fallback should fail")
	}
	if v, err := s.GetBool("enabled"); err != nil || !v {
		t.Errorf("GetBool(enabled) = %v, %v", v, err)
	}
	if v, err := s.GetInt("count"); err != nil || v != 3 {
		t.Errorf("GetInt(count) = %v, %v", v, err)
	}
	if v, err := s.GetChoice("mode", []string{"average", "median"}); err != nil || v != "median" {
		t.Errorf("GetChoice(mode) = %q, %v", v, err)
	}
	if _, err := s.GetChoice("mode", []string{"average"}); err == nil {
		t.Error("GetChoice should reject median")
	}
}
