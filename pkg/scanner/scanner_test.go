package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/hosting"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	name  string
	items []hosting.Item
	err   error
}

func (f fakeLister) Name() string { return f.name }

func (f fakeLister) ListItems(context.Context) ([]hosting.Item, error) { return f.items, f.err }

func TestScanMergesProviders(t *testing.T) {
	listers := []hosting.Lister{
		fakeLister{name: "xfs", items: []hosting.Item{
			{Name: "naruto", LocationID: "x1"},
			{Name: "Bleach", LocationID: "x2"},
			{Name: "naruto", LocationID: "x1"},
		}},
		fakeLister{name: "mixdrop", items: []hosting.Item{
			{Name: "NARUTO", LocationID: "m1"},
			{Name: "  ", LocationID: "m2"},
		}},
	}

	snap := Scan(context.Background(), listers, nil)
	require.Equal(t, []string{"xfs", "mixdrop"}, snap.Providers)
	require.Empty(t, snap.Failed)
	require.Len(t, snap.Records, 2)

	require.Equal(t, "Bleach", snap.Records[0].Name)
	naruto := snap.Records[1]
	require.Equal(t, "naruto", naruto.Key)
	require.Equal(t, "Naruto", naruto.Name)
	require.Equal(t, "N", naruto.Letter)
	require.Equal(t, []catalog.Location{
		{Provider: "xfs", ID: "x1"},
		{Provider: "mixdrop", ID: "m1"},
	}, naruto.Locations)
}

func TestScanRecordsFailedProviders(t *testing.T) {
	listers := []hosting.Lister{
		fakeLister{name: "xfs", err: errors.New("boom")},
		fakeLister{name: "mixdrop", items: []hosting.Item{{Name: "Bleach", LocationID: "m1"}}},
	}
	snap := Scan(context.Background(), listers, nil)

	require.True(t, snap.ProviderFailed("xfs"))
	require.True(t, snap.ProviderValid("xfs"))
	require.False(t, snap.ProviderValid("aniflix"))
	require.False(t, snap.AllFailed())
	require.Contains(t, snap.ByKey(), "bleach")

	snap = Scan(context.Background(), listers[:1], nil)
	require.True(t, snap.AllFailed())
	require.Empty(t, snap.Records)
}

func TestScanIsDeterministic(t *testing.T) {
	listers := []hosting.Lister{
		fakeLister{name: "xfs", items: []hosting.Item{{Name: "b", LocationID: "1"}, {Name: "A", LocationID: "2"}, {Name: "c", LocationID: "3"}}},
	}
	first := Scan(context.Background(), listers, nil)
	second := Scan(context.Background(), listers, nil)
	require.Equal(t, first, second)
	require.Equal(t, []string{"a", "b", "c"}, []string{first.Records[0].Key, first.Records[1].Key, first.Records[2].Key})
}
