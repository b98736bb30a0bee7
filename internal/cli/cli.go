// Package cli implements the chunkvault operator commands. They run the
// file service in-process against the configured catalog and blob store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/server/models"
	"github.com/dmitrijs2005/chunkvault/internal/server/services"
)

// Commands lists the subcommand names.
var Commands = []string{"put", "get", "ls", "rm"}

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage: chunkvault-cli [flags] put FILE... | get ID OUT | ls | rm ID")

// Files is the part of the file service the commands use.
type Files interface {
	StoreFiles(ctx context.Context, uploads []services.FileUpload) ([]*models.FileRecord, error)
	RetrieveFile(ctx context.Context, id int64) (*models.FileRecord, io.ReadCloser, error)
	DeleteFile(ctx context.Context, id int64) error
	ListFiles(ctx context.Context) ([]*models.FileRecord, int64, error)
}

// SplitCommand finds the subcommand in args and returns it with its
// arguments. Flags before the subcommand belong to the config loader.
func SplitCommand(args []string) (string, []string, error) {
	for i, a := range args {
		for _, c := range Commands {
			if a == c {
				return c, args[i+1:], nil
			}
		}
	}
	return "", nil, ErrUsage
}

// Run executes one command, writing human-readable output to out.
func Run(ctx context.Context, files Files, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "put":
		return put(ctx, files, args, out)
	case "get":
		return get(ctx, files, args, out)
	case "ls":
		return list(ctx, files, out)
	case "rm":
		return remove(ctx, files, args, out)
	default:
		return ErrUsage
	}
}

func put(ctx context.Context, files Files, paths []string, out io.Writer) error {
	if len(paths) == 0 {
		return ErrUsage
	}

	uploads := make([]services.FileUpload, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		uploads = append(uploads, services.FileUpload{
			Name: filepath.Base(p),
			Type: ct,
			Size: st.Size(),
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}

	recs, err := files.StoreFiles(ctx, uploads)
	for _, rec := range recs {
		fmt.Fprintf(out, "%d\t%s\t%d bytes\t%d chunks\n", rec.ID, rec.FileName, rec.FileSize, rec.TotalChunks)
	}
	return err
}

func get(ctx context.Context, files Files, args []string, out io.Writer) error {
	if len(args) != 2 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ErrUsage
	}

	rec, rc, err := files.RetrieveFile(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(args[1])
	if err != nil {
		return err
	}
	n, err := io.Copy(dst, rc)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(args[1])
		return err
	}

	fmt.Fprintf(out, "%s -> %s (%d bytes)\n", rec.FileName, args[1], n)
	return nil
}

func list(ctx context.Context, files Files, out io.Writer) error {
	recs, total, err := files.ListFiles(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tCHUNKS\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.FileName, r.FileType, r.FileSize, r.TotalChunks,
			r.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(tw, "\ttotal\t\t%d\t\t\n", total)
	return tw.Flush()
}

func remove(ctx context.Context, files Files, args []string, out io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ErrUsage
	}
	if err := files.DeleteFile(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d\n", id)
	return nil
}
