// Command pathoram drives an oblivious key/value store through a fixed
// read/write scenario and checks the tree afterwards.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pathoram "github.com/etclab/pathoram-kv"
	"github.com/etclab/pathoram-kv/storage/badgerstore"
	"github.com/etclab/pathoram-kv/storage/leveldbstore"
	"github.com/etclab/pathoram-kv/wire"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "pathoram",
		Short: "Oblivious key/value storage over a Path ORAM tree",
	}
	root.AddCommand(newDemoCommand(), newVersionCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

type demoFlags struct {
	configPath string
	levels     int
	bucketSize int
	cipher     string
	eviction   string
	backend    string
	dir        string
	remote     bool
	verbose    bool
}

func newDemoCommand() *cobra.Command {
	var f demoFlags
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the sample write/read sequence",
		Long: `Run the sample write/read sequence.

Writes a..e, reads them back, overwrites c, reads c and an unknown key,
then decrypts every slot of the tree and checks the path invariant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file (flags override it)")
	cmd.Flags().IntVar(&f.levels, "levels", 4, "number of tree levels")
	cmd.Flags().IntVar(&f.bucketSize, "bucket-size", 4, "slots per bucket (Z)")
	cmd.Flags().StringVar(&f.cipher, "cipher", "", "aes-gcm, xchacha20poly1305 or tink-aes256-gcm")
	cmd.Flags().StringVar(&f.eviction, "eviction", "", "level-by-level, greedy-by-depth or two-path")
	cmd.Flags().StringVar(&f.backend, "backend", "memory", "memory, badger or leveldb")
	cmd.Flags().StringVar(&f.dir, "dir", "", "data directory for badger/leveldb (empty = in memory)")
	cmd.Flags().BoolVar(&f.remote, "remote", false, "route storage calls through the wire codec")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func buildConfig(f demoFlags) (pathoram.Config, error) {
	var cfg pathoram.Config
	if f.configPath != "" {
		var err error
		if cfg, err = pathoram.LoadConfig(f.configPath); err != nil {
			return cfg, err
		}
	} else {
		cfg.NumLevels = f.levels
		cfg.BucketSize = f.bucketSize
	}
	if f.cipher != "" {
		cfg.Cipher = f.cipher
	}
	if f.eviction != "" {
		cfg.Eviction = f.eviction
	}
	return cfg.Validate()
}

func openStorage(f demoFlags, cfg pathoram.Config, log *logrus.Logger) (pathoram.Storage, io.Closer, error) {
	switch f.backend {
	case "memory":
		return pathoram.NewInMemoryStorage(cfg.NumLevels, cfg.BucketSize), nil, nil
	case "badger":
		s, err := badgerstore.Open(f.dir, cfg.NumLevels, cfg.BucketSize, log)
		return s, s, err
	case "leveldb":
		s, err := leveldbstore.Open(f.dir, cfg.NumLevels, cfg.BucketSize)
		return s, s, err
	}
	return nil, nil, fmt.Errorf("unknown backend %q", f.backend)
}

func runDemo(out io.Writer, f demoFlags) error {
	log := logrus.New()
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := buildConfig(f)
	if err != nil {
		return err
	}
	store, closer, err := openStorage(f, cfg, log)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	if f.remote {
		h := wire.NewHandler(store, log)
		store = wire.NewClient(wire.NewLoopback(h), cfg.NumLevels, cfg.BucketSize)
	}

	key, err := pathoram.NewSessionKey()
	if err != nil {
		return err
	}
	codec, err := pathoram.NewCodecFromConfig(cfg, key)
	if err != nil {
		return err
	}
	oram, err := pathoram.New(cfg, store, codec, pathoram.WithLogger(log))
	if err != nil {
		return err
	}

	write := func(k, v string) error {
		if err := oram.Write(k, []byte(v)); err != nil {
			return fmt.Errorf("write(%s): %w", k, err)
		}
		fmt.Fprintf(out, "write(%s) = %s\n", k, v)
		return nil
	}
	read := func(k string) error {
		v, ok, err := oram.Read(k)
		if err != nil {
			return fmt.Errorf("read(%s): %w", k, err)
		}
		if !ok {
			fmt.Fprintf(out, "read(%s) = <absent>\n", k)
			return nil
		}
		fmt.Fprintf(out, "read(%s) = %s\n", k, v)
		return nil
	}

	fruit := [][2]string{{"a", "apple"}, {"b", "banana"}, {"c", "cherry"}, {"d", "date"}, {"e", "elderberry"}}
	for _, kv := range fruit {
		if err := write(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for _, kv := range fruit {
		if err := read(kv[0]); err != nil {
			return err
		}
	}
	if err := write("c", "coconut"); err != nil {
		return err
	}
	if err := read("c"); err != nil {
		return err
	}
	if err := read("z"); err != nil {
		return err
	}

	if err := oram.Verify(); err != nil {
		return fmt.Errorf("verify tree: %w", err)
	}
	st := oram.Stats()
	fmt.Fprintf(out, "tree ok: %d accesses, %d path reads, %d path writes, max stash %d\n",
		st.Accesses, st.PathReads, st.PathWrites, st.MaxStash)
	return nil
}
