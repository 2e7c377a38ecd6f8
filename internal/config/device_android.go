package config

const defaultDevicePath = "/dev/block/mmcblk0"
