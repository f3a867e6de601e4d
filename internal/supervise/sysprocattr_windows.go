//go:build windows

package supervise

import "os/exec"

func configureSysProcAttr(cmd *exec.Cmd) {}
