package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDocument = `[
    {
        "aid": 1,
        "name": "Naruto",
        "jname": "\u30ca\u30eb\u30c8",
        "poster": "N/A",
        "banner": "N/A",
        "cname": "xfs, mixdrop",
        "cid": "f1, m1",
        "let": "N",
        "trailer": "N/A",
        "genre": "Action, Adventure",
        "type": "TV",
        "status": "Finished",
        "airing": "false",
        "studio": "Pierrot",
        "producers": "N/A",
        "total_episodes": 220,
        "pg_rating": "N/A",
        "sanime": "N/A",
        "imdb_rating": 8.0,
        "imdb_votes": 1200,
        "synopsis": "N/A",
        "ranime": [
            "Boruto"
        ]
    },
    {
        "aid": 2,
        "name": "Bleach",
        "jname": "N/A",
        "poster": "N/A",
        "banner": "N/A",
        "cname": "xfs",
        "cid": "f2",
        "let": "B",
        "trailer": "N/A",
        "genre": "N/A",
        "type": "N/A",
        "status": "N/A",
        "airing": "false",
        "studio": "N/A",
        "producers": "N/A",
        "total_episodes": "N/A",
        "pg_rating": "N/A",
        "sanime": "N/A",
        "imdb_rating": "N/A",
        "imdb_votes": "N/A",
        "synopsis": "Tom & Jerry <3",
        "ranime": "N/A"
    }
]`

func TestDecodeEncodeIsByteIdentical(t *testing.T) {
	c, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)
	require.Len(t, c, 2)

	out, err := c.Encode()
	require.NoError(t, err)
	require.Equal(t, sampleDocument, string(out))
}

func TestDecodeFields(t *testing.T) {
	c, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)

	naruto := c[0]
	require.Equal(t, "ナルト", naruto.JapaneseName)
	require.Equal(t, []Location{{"xfs", "f1"}, {"mixdrop", "m1"}}, naruto.Locations)
	require.Equal(t, KnownRating(8), naruto.Rating)
	require.Equal(t, KnownCount(220), naruto.TotalEpisodes)
	require.Equal(t, KnownNames([]string{"Boruto"}), naruto.Related)
	require.False(t, naruto.Airing)

	bleach := c[1]
	require.False(t, bleach.Rating.Known)
	require.False(t, bleach.Votes.Known)
	require.False(t, bleach.TotalEpisodes.Known)
	require.False(t, bleach.Related.Known)
	require.Equal(t, NotAvailable, bleach.Status)
}

func TestDecodeEncodeKeepsUnrecognisedScores(t *testing.T) {
	doc := strings.Replace(sampleDocument, `"imdb_rating": "N/A"`, `"imdb_rating": "No rating"`, 1)
	doc = strings.Replace(doc, `"imdb_votes": "N/A"`, `"imdb_votes": 12.5`, 1)
	doc = strings.Replace(doc, `"total_episodes": "N/A"`, `"total_episodes": "ongoing"`, 1)
	require.NotEqual(t, sampleDocument, doc)

	c, err := Decode([]byte(doc))
	require.NoError(t, err)
	bleach := c[1]
	require.False(t, bleach.Rating.Known)
	require.False(t, bleach.Votes.Known)
	require.False(t, bleach.TotalEpisodes.Known)
	require.Equal(t, NotAvailable, bleach.Rating.String())

	out, err := c.Encode()
	require.NoError(t, err)
	require.Equal(t, doc, string(out))

	// A filled value replaces the kept text.
	c[1].Rating = KnownRating(7.9)
	out, err = c.Encode()
	require.NoError(t, err)
	require.Contains(t, string(out), `"imdb_rating": 7.9,`)
	require.NotContains(t, string(out), "No rating")
}

func TestEncodeSortsByID(t *testing.T) {
	c := Catalog{
		NewEntry(3, "C", nil),
		NewEntry(1, "A", nil),
		NewEntry(2, "B", nil),
	}
	out, err := c.Encode()
	require.NoError(t, err)

	back, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, []int{back[0].ID, back[1].ID, back[2].ID})
	require.True(t, c.Equal(back))
}

func TestEncodeEmptyCatalog(t *testing.T) {
	out, err := Catalog(nil).Encode()
	require.NoError(t, err)
	require.Equal(t, "[]", string(out))

	c, err := Decode([]byte("  \n"))
	require.NoError(t, err)
	require.Empty(t, c)
	require.NotNil(t, c)
}

func TestDecodeRejectsDuplicateIDs(t *testing.T) {
	_, err := Decode([]byte(`[{"aid": 4, "name": "A"}, {"aid": 4, "name": "B"}]`))
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestDecodeLegacyValues(t *testing.T) {
	doc := `[{"aid": 7, "name": "Legacy", "airing": true, "imdb_rating": "7.25",
		"imdb_votes": 1500.0, "total_episodes": null, "studio": null, "ranime": []}]`
	c, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, c, 1)

	e := c[0]
	require.True(t, e.Airing)
	require.Equal(t, KnownRating(7.25), e.Rating)
	require.Equal(t, KnownCount(1500), e.Votes)
	require.False(t, e.TotalEpisodes.Known)
	require.Equal(t, NotAvailable, e.Studio)
	require.Equal(t, NotAvailable, e.Poster)
	require.True(t, e.Related.Known)
	require.Empty(t, e.Related.Values)
	require.Nil(t, e.Locations)
}

func TestEncodeEscapesNonASCII(t *testing.T) {
	e := NewEntry(1, "Café 🍣", nil)
	out, err := Catalog{e}.Encode()
	require.NoError(t, err)
	require.Contains(t, string(out), `"Caf\u00e9 \ud83c\udf63"`)

	back, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, "Café 🍣", back[0].Name)
}

func TestCatalogLookups(t *testing.T) {
	c := Catalog{
		NewEntry(5, "Naruto", nil),
		NewEntry(9, "naruto ", nil),
		NewEntry(2, "Bleach", nil),
	}
	require.Equal(t, 9, c.MaxID())
	require.Equal(t, 0, Catalog{}.MaxID())
	require.Equal(t, 5, c.ByKey()["naruto"].ID)
	require.Equal(t, "Bleach", c.ByID()[2].Name)
}

func TestCloneIsDeep(t *testing.T) {
	c := Catalog{NewEntry(1, "A", []Location{{"xfs", "1"}})}
	c[0].Related = KnownNames([]string{"B"})

	cp := c.Clone()
	cp[0].Locations[0].ID = "changed"
	cp[0].Related.Values[0] = "changed"

	require.Equal(t, "1", c[0].Locations[0].ID)
	require.Equal(t, "B", c[0].Related.Values[0])
	require.False(t, c.Equal(cp))
}

func TestLocationsWithoutIDsAreDropped(t *testing.T) {
	require.Nil(t, splitLocations("N/A", "N/A"))
	require.Equal(t, []Location{{"xfs", "a"}}, splitLocations("xfs, xfs, mixdrop", "a, a,"))

	cname, cid := joinLocations(nil)
	require.Equal(t, NotAvailable, cname)
	require.Equal(t, NotAvailable, cid)
}

func TestLists(t *testing.T) {
	require.Equal(t, []string{"Action", "Drama"}, SplitList("Action, Drama ,"))
	require.Nil(t, SplitList(NotAvailable))
	require.Equal(t, "Action, Drama", JoinList([]string{"Action", "Drama"}))
	require.Equal(t, NotAvailable, JoinList(nil))
}
