//go:build !linux

package fetcher

import (
	"errors"
	"os"

	"github.com/chromedp/chromedp"
)

func processGroupOption() chromedp.ExecAllocatorOption {
	return func(*chromedp.ExecAllocator) {}
}

func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
