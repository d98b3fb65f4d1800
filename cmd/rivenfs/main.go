// rivenfs mounts a debrid-provider media catalog as a read-only FUSE
// filesystem, and offers a handful of subcommands for editing that catalog
// out of band (the internal mutation API, exposed here as CLI verbs since
// the caller in production is typically a shell-invoking media-management
// process rather than another Go binary linking this module).
//
// Usage:
//
//	rivenfs mount [flags] mount-point
//	rivenfs add-file <path> <url> <size> <provider> <provider-download-id>
//	rivenfs remove-file <path>
//	rivenfs rename-file <old-path> <new-path>
//	rivenfs ls <path>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rivenmedia/rivenfs/cfg"
	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/logger"
	"github.com/rivenmedia/rivenfs/internal/provider"
	"github.com/rivenmedia/rivenfs/internal/urlcache"
	"github.com/rivenmedia/rivenfs/internal/urlresolver"
	"github.com/rivenmedia/rivenfs/internal/vfs"
)

const unmountJoinTimeout = 10 * time.Second

var (
	cfgFile      string
	bindErr      error
	unmarshalErr error
)

var rootCmd = &cobra.Command{
	Use:   "rivenfs",
	Short: "Mount a debrid-provider media catalog as a read-only FUSE filesystem",
}

var mountCmd = &cobra.Command{
	Use:   "mount [flags] mount-point",
	Short: "Mount the catalog at mount-point and serve it until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		config.Mount.MountPoint = cfg.ResolvedPath(args[0])
		return runMount(cmd.Context(), config)
	},
}

var addFileCmd = &cobra.Command{
	Use:   "add-file <path> <url> <size> <provider> <provider-download-id>",
	Short: "Insert or update a catalog file entry",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing size: %w", err)
		}
		return withMutations(func(m *vfs.Mutations) error {
			ok, err := m.AddFile(args[0], args[1], size, args[3], args[4])
			return reportBool("add-file", ok, err)
		})
	},
}

var removeFileCmd = &cobra.Command{
	Use:   "remove-file <path>",
	Short: "Remove a catalog entry and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMutations(func(m *vfs.Mutations) error {
			ok, err := m.RemoveFile(args[0])
			return reportBool("remove-file", ok, err)
		})
	},
}

var renameFileCmd = &cobra.Command{
	Use:   "rename-file <old-path> <new-path>",
	Short: "Move a catalog entry (and its descendants) to a new path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMutations(func(m *vfs.Mutations) error {
			ok, err := m.RenameFile(args[0], args[1])
			return reportBool("rename-file", ok, err)
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List the immediate children of a catalog directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMutations(func(m *vfs.Mutations) error {
			children, err := m.ListDirectory(args[0])
			if err != nil {
				return err
			}
			for _, c := range children {
				kind := "file"
				if c.IsDirectory {
					kind = "dir"
				}
				fmt.Printf("%s\t%s\t%d\n", kind, c.Name, c.Size)
			}
			return nil
		})
	},
}

func reportBool(verb string, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no such entry", verb)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(mountCmd, addFileCmd, removeFileCmd, renameFileCmd, lsCmd)
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		unmarshalErr = fmt.Errorf("reading config file: %w", err)
	}
}

func loadConfig() (*cfg.Config, error) {
	if bindErr != nil {
		return nil, bindErr
	}
	if unmarshalErr != nil {
		return nil, unmarshalErr
	}
	config, err := cfg.Decode(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config.Catalog.DatabasePath == "" {
		return nil, fmt.Errorf("catalog.database-path is required")
	}
	return config, nil
}

// withMutations opens the catalog configured via flags/config file, builds
// a Mutations handle with no live kernel session behind it (cache
// invalidation is a harmless no-op without a mount to invalidate), and runs
// f against it, closing the catalog afterward.
func withMutations(f func(*vfs.Mutations) error) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Open(string(config.Catalog.DatabasePath))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	providers := provider.NewRegistry()
	urlCache := urlcache.New(config.Streaming.UrlCacheTtl())
	_, mutations := vfs.NewFileSystem(vfs.Config{
		Catalog:   cat,
		Providers: providers,
		Resolver:  urlresolver.New(cat, providers),
		URLCache:  urlCache,
		Mount:     config.Mount,
		Streaming: config.Streaming,
	})
	return f(mutations)
}

func runMount(ctx context.Context, config *cfg.Config) error {
	if err := logger.InitLogFile(config.Logging); err != nil {
		return fmt.Errorf("initializing log file: %w", err)
	}
	logger.SetLogFormat(config.Logging.Format)

	cat, err := catalog.Open(string(config.Catalog.DatabasePath))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	providers := provider.NewRegistry()
	urlCache := urlcache.New(config.Streaming.UrlCacheTtl())
	resolver := urlresolver.New(cat, providers)

	server, _ := vfs.NewFileSystem(vfs.Config{
		Catalog:   cat,
		Providers: providers,
		Resolver:  resolver,
		URLCache:  urlCache,
		Mount:     config.Mount,
		Streaming: config.Streaming,
	})

	mount, err := vfs.Mount(string(config.Mount.MountPoint), server, config.Mount)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", config.Mount.MountPoint, err)
	}
	logger.Infof("mounted %s at %s", config.AppName, mount.Dir())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Infof("received interrupt, unmounting %s", mount.Dir())
		mount.Close(unmountJoinTimeout)
	}()

	return mount.Wait(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
