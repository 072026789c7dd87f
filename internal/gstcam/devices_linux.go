//go:build linux

package gstcam

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const sysfsVideo = "/sys/class/video4linux"

// Enumerate lists V4L2 capture nodes in /dev/videoN order.
//
// UVC cameras expose a second metadata node per camera; only nodes with
// sysfs index 0 are kept.
func Enumerate() ([]Device, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return nodeNumber(paths[i]) < nodeNumber(paths[j])
	})

	var devices []Device
	for _, path := range paths {
		node := filepath.Base(path)
		if idx := readSysfs(node, "index"); idx != "" && idx != "0" {
			continue
		}
		name := readSysfs(node, "name")
		if name == "" {
			name = node
		}
		devices = append(devices, Device{
			Index:   len(devices),
			Name:    name,
			Path:    path,
			Element: "v4l2src",
			Props:   map[string]interface{}{"device": path},
		})
	}
	return devices, nil
}

func readSysfs(node, attr string) string {
	b, err := os.ReadFile(filepath.Join(sysfsVideo, node, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func nodeNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	if err != nil {
		return 1 << 30
	}
	return n
}
