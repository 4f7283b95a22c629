package datastep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scores(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords("scores",
		[]dataset.Variable{dataset.Char("name", 8), dataset.Num("score")},
		[][]any{{"ann", 45}, {"bob", 80}, {"cy", nil}, {"dee", 60}},
	)
	require.NoError(t, err)
	return ds
}

func column(t *testing.T, ds *dataset.Dataset, name string) []value.Value {
	t.Helper()
	col, err := ds.Column(name)
	require.NoError(t, err)
	return col
}

func TestRun_ImplicitEmit(t *testing.T) {
	in := scores(t)
	res, err := New(Config{Name: "out"}).Run(context.Background(), in, ProgramFunc(func(_ context.Context, s *Session) error {
		v, err := s.Get("score")
		if err != nil {
			return err
		}
		double, err := value.Mul(v, value.Num(2))
		if err != nil {
			return err
		}
		return s.Assign("double", double)
	}))
	require.NoError(t, err)

	assert.Equal(t, "out", res.Output.Name)
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, 4, res.Emitted)
	assert.Equal(t, []string{"name", "score", "double"}, res.Output.Catalog.Names())
	assert.Equal(t, []value.Value{value.Num(90), value.Num(160), value.Missing(), value.Num(120)},
		column(t, res.Output, "double"))

	assert.Equal(t, 2, in.Catalog.Len(), "input catalog must not grow")
}

func TestRun_UnretainedResetsEveryIteration(t *testing.T) {
	var seen []value.Value
	_, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if s.Catalog().Has("tmp") {
			v, _ := s.Get("tmp")
			seen = append(seen, v)
		}
		return s.Assign("tmp", value.Int(s.N()))
	}))
	require.NoError(t, err)
	require.Len(t, seen, 3)
	for _, v := range seen {
		assert.True(t, v.IsMissing())
	}
}

func TestRun_RetainCarriesOver(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if err := s.Retain([]string{"total"}, []value.Value{value.Num(0)}); err != nil {
			return err
		}
		total, _ := s.Get("total")
		score, _ := s.Get("score")
		if score.IsMissing() {
			return nil
		}
		sum, err := value.Add(total, score)
		if err != nil {
			return err
		}
		return s.Set("total", sum)
	}))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Num(45), value.Num(125), value.Num(125), value.Num(185)},
		column(t, res.Output, "total"))
}

func TestRun_RetainSurplusIsWarning(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), nil, ProgramFunc(func(_ context.Context, s *Session) error {
		return s.Retain([]string{"a"}, []value.Value{value.Num(1), value.Num(2)})
	}))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, core.IsWarning(res.Warnings[0]))
	assert.Equal(t, []value.Value{value.Num(1)}, column(t, res.Output, "a"))
}

func TestRun_NoInputSingleIteration(t *testing.T) {
	res, err := New(Config{Name: "one"}).Run(context.Background(), nil, ProgramFunc(func(_ context.Context, s *Session) error {
		for i := 1; i <= 3; i++ {
			if err := s.Assign("i", value.Int(i)); err != nil {
				return err
			}
			if err := s.Output(); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2), value.Int(3)}, column(t, res.Output, "i"))
}

func TestRun_EmptyInputRunsNothing(t *testing.T) {
	in := dataset.New("empty", dataset.MustCatalog(dataset.Num("x")))
	calls := 0
	res, err := New(Config{}).Run(context.Background(), in, ProgramFunc(func(context.Context, *Session) error {
		calls++
		return nil
	}))
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, 0, res.Output.Len())
	assert.Equal(t, []string{"x"}, res.Output.Catalog.Names())
}

func TestRun_DeleteSkipsEmitButSyncsRetain(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if err := s.Retain([]string{"count"}, []value.Value{value.Num(0)}); err != nil {
			return err
		}
		c, _ := s.Get("count")
		next, _ := value.Add(c, value.Num(1))
		if err := s.Set("count", next); err != nil {
			return err
		}
		if v, _ := s.Get("score"); v.IsMissing() {
			s.Delete()
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, []value.Value{value.Num(1), value.Num(2), value.Num(4)}, column(t, res.Output, "count"))
}

func TestRun_Stop(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if s.N() == 2 {
			s.Stop()
		}
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, res.Output.Len())
}

func TestRun_ErrorKeepsEmittedRows(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if s.N() == 3 {
			_, err := s.Get("nosuch")
			return err
		}
		return nil
	}))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindUnknownVariable))
	assert.Equal(t, 3, core.RowOf(err))
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Output.Len())
}

func TestRun_LateVariablePadsEarlierRows(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if s.N() == 4 {
			return s.Assign("flag", value.Char("late"))
		}
		return nil
	}))
	require.NoError(t, err)
	for _, r := range res.Output.Rows {
		assert.Len(t, r.Values(), 3)
	}
	flags := column(t, res.Output, "flag")
	assert.True(t, flags[0].IsMissing())
	assert.Equal(t, value.Char("late"), flags[3])
}

func TestRun_Arrays(t *testing.T) {
	in, err := dataset.FromRecords("q",
		[]dataset.Variable{dataset.Num("q1"), dataset.Num("q2"), dataset.Num("q3")},
		[][]any{{1, 2, 3}, {4, nil, 6}},
	)
	require.NoError(t, err)

	res, err := New(Config{}).Run(context.Background(), in, ProgramFunc(func(_ context.Context, s *Session) error {
		if err := s.DeclareArray("q", nil, []string{"q1", "q2", "q3"}); err != nil {
			return err
		}
		if err := s.DeclareArray("sq", nil, []string{"s1", "s2", "s3"}); err != nil {
			return err
		}
		for i := 1; i <= 3; i++ {
			v, err := s.ArrayGet("q", i)
			if err != nil {
				return err
			}
			p, err := value.Mul(v, v)
			if err != nil {
				return err
			}
			if err := s.ArraySet("sq", p, i); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Num(9), value.Num(36)}, column(t, res.Output, "s3"))
	assert.True(t, column(t, res.Output, "s2")[1].IsMissing())
}

func TestRun_ArrayOutOfBounds(t *testing.T) {
	_, err := New(Config{}).Run(context.Background(), nil, ProgramFunc(func(_ context.Context, s *Session) error {
		if err := s.DeclareArray("a", []int{2}, []string{"a1", "a2"}); err != nil {
			return err
		}
		_, err := s.ArrayGet("a", 3)
		return err
	}))
	assert.True(t, core.IsKind(err, core.KindIndexOutOfBounds))
	assert.Equal(t, 1, core.RowOf(err))
}

func TestRun_Render(t *testing.T) {
	formats := format.NewCatalog(format.Options{})
	require.NoError(t, formats.Declare("grade", []format.Range{
		{Low: format.Low(), High: format.Below(value.Num(50)), Label: "Fail"},
		{Low: format.At(value.Num(50)), High: format.High(), Label: "Pass"},
	}))

	res, err := New(Config{Formats: formats}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		v, _ := s.Get("score")
		label, err := s.Render("grade", v)
		if err != nil {
			return err
		}
		return s.Assign("grade", value.Char(label))
	}))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Char("Fail"), value.Char("Pass"), value.Char("."), value.Char("Pass")},
		column(t, res.Output, "grade"))
}

func TestRun_RenderWithoutFormats(t *testing.T) {
	_, err := New(Config{}).Run(context.Background(), nil, ProgramFunc(func(_ context.Context, s *Session) error {
		_, err := s.Render("grade", value.Num(1))
		return err
	}))
	assert.True(t, core.IsKind(err, core.KindUnknownFormat))
}

func TestRun_KeepDrop(t *testing.T) {
	prog := ProgramFunc(func(_ context.Context, s *Session) error {
		return s.Assign("extra", value.Num(1))
	})

	res, err := New(Config{Keep: []string{"score", "name"}}).Run(context.Background(), scores(t), prog)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "score"}, res.Output.Catalog.Names())

	res, err = New(Config{Drop: []string{"extra"}}).Run(context.Background(), scores(t), prog)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "score"}, res.Output.Catalog.Names())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res, err := New(Config{}).Run(ctx, scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		if s.N() == 2 {
			cancel()
		}
		return nil
	}))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, res.Output.Len(), "rows finished before cancellation stay emitted")
}

func TestRun_Timeout(t *testing.T) {
	_, err := New(Config{Timeout: 10 * time.Millisecond}).Run(context.Background(), scores(t), ProgramFunc(func(context.Context, *Session) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}))
	assert.True(t, core.IsKind(err, core.KindCancelled))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRun_MaxIterations(t *testing.T) {
	res, err := New(Config{MaxIterations: 2}).Run(context.Background(), scores(t), ProgramFunc(func(context.Context, *Session) error {
		return nil
	}))
	assert.True(t, core.IsKind(err, core.KindCancelled))
	assert.Equal(t, 2, res.Output.Len())
}

func TestRun_Put(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), scores(t), ProgramFunc(func(_ context.Context, s *Session) error {
		v, _ := s.Get("name")
		s.Put("name=%s", v)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"name=ann", "name=bob", "name=cy", "name=dee"}, res.Log)
}
