package containerengine

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
)

// Exec runs command inside containerID via the engine CLI's "exec"
// subcommand, a break-glass path into the container's own shell that
// bypasses the kernel gateway entirely. When stdin is a terminal it
// allocates a pty and puts the local terminal into raw mode for the
// duration of the session, mirroring the teacher's ContainerSvc.Exec.
func (e *Engine) Exec(containerID, command string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmdArgs := append([]string{"exec", "-i", containerID, command}, args...)
	cmd := exec.Command(e.Bin, cmdArgs...)

	stdinFile, isFile := stdin.(*os.File)
	if !isFile || !term.IsTerminal(int(stdinFile.Fd())) {
		cmd.Stdin = stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Start(); err != nil {
			return ipyerr.New(ipyerr.ContainerController, "Exec", ipyerr.Provisioning, err)
		}
		return cmd.Wait()
	}

	oldState, err := term.MakeRaw(int(stdinFile.Fd()))
	if err != nil {
		return ipyerr.New(ipyerr.ContainerController, "Exec", ipyerr.Provisioning, err)
	}
	defer term.Restore(int(stdinFile.Fd()), oldState)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return ipyerr.New(ipyerr.ContainerController, "Exec", ipyerr.Provisioning, err)
	}
	defer ptmx.Close()

	go io.Copy(ptmx, stdin)
	go io.Copy(stdout, ptmx)

	return cmd.Wait()
}
