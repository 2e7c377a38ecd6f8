//go:build !android

package config

const defaultDevicePath = "/dev/mmcblk0"
