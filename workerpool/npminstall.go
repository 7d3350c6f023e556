package workerpool

import (
	"context"

	"tractor.dev/sandbundle/installer"
	"tractor.dev/sandbundle/vfs"
)

// runNpmInstall drives the dependency installer against an already-reset
// worker-local FS, forwarding its progress sink onward, then returns the
// flushed raw file tree to merge back into the shared FS.
func runNpmInstall(fsys *vfs.FS, req *NpmInstallRequest, progress installer.Progress) (map[string]string, error) {
	in := installer.New()
	reg, err := installer.NewRegistry(context.Background(), req.RegistryBaseURL)
	if err != nil {
		return nil, err
	}

	opts := installer.Options{
		Registry:  reg,
		Overrides: installer.Deps(req.Overrides),
		Progress:  progress,
	}

	if err := in.Install(context.Background(), fsys, opts); err != nil {
		return nil, err
	}
	return fsys.RawFiles(), nil
}
