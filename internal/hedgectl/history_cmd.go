package hedgectl

import (
	"context"
	"io"

	"autohedge/config"
	"autohedge/internal/terminalui"
)

func runHistory(ctx context.Context, cfg *config.Config, w io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.List(ctx)
	if err != nil {
		return err
	}
	return terminalui.RenderHistory(w, recs)
}

func runReport(ctx context.Context, cfg *config.Config, key string, w io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Get(ctx, key)
	if err != nil {
		return err
	}
	return terminalui.RenderReport(w, rec.Report(), terminalui.Options{})
}
