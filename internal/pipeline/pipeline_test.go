package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"placedex/internal/models"
)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) TruncateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) UpsertBrand(ctx context.Context, brand *models.Brand) (int32, error) {
	args := m.Called(ctx, brand)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockStore) LoadPOIs(ctx context.Context, brandID int32, pois []models.POI) error {
	args := m.Called(ctx, brandID, pois)
	return args.Error(0)
}

// MockExtractor is a mock implementation of the Extractor interface
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractFile(path string) (*models.Brand, []models.POI, error) {
	args := m.Called(path)
	brand, _ := args.Get(0).(*models.Brand)
	pois, _ := args.Get(1).([]models.POI)
	return brand, pois, args.Error(2)
}

func sourceDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	return dir
}

func TestRunTruncationFailureAborts(t *testing.T) {
	store := &MockStore{}
	extractor := &MockExtractor{}
	store.On("TruncateAll", mock.Anything).Return(errors.New("boom"))

	p := NewPipeline(store, extractor, nil)
	_, err := p.Run(context.Background(), sourceDir(t, "a.geojson"))

	assert.Error(t, err)
	extractor.AssertNotCalled(t, "ExtractFile", mock.Anything)
}

func TestRunHappyPath(t *testing.T) {
	dir := sourceDir(t, "a.geojson", "b.geojson")
	store := &MockStore{}
	extractor := &MockExtractor{}

	brandA := &models.Brand{Name: "A"}
	brandB := &models.Brand{Name: "B"}
	poisA := []models.POI{{SpiderID: "a", CountryCode: "FR"}}
	poisB := []models.POI{{SpiderID: "b", CountryCode: "US"}, {SpiderID: "b", CountryCode: "US"}}

	store.On("TruncateAll", mock.Anything).Return(nil).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "a.geojson")).Return(brandA, poisA, nil).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "b.geojson")).Return(brandB, poisB, nil).Once()
	store.On("UpsertBrand", mock.Anything, brandA).Return(int32(1), nil).Once()
	store.On("UpsertBrand", mock.Anything, brandB).Return(int32(2), nil).Once()
	store.On("LoadPOIs", mock.Anything, int32(1), poisA).Return(nil).Once()
	store.On("LoadPOIs", mock.Anything, int32(2), poisB).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	summary, err := p.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.Equal(t, 3, summary.POIsLoaded)
	store.AssertExpectations(t)
	extractor.AssertExpectations(t)
}

func TestRunSkipsBrokenFileAndContinues(t *testing.T) {
	dir := sourceDir(t, "broken.geojson", "good.geojson")
	store := &MockStore{}
	extractor := &MockExtractor{}

	brand := &models.Brand{Name: "Good"}
	pois := []models.POI{{SpiderID: "g", CountryCode: "FR"}}

	store.On("TruncateAll", mock.Anything).Return(nil).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "broken.geojson")).
		Return(nil, nil, errors.New("unparseable")).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "good.geojson")).Return(brand, pois, nil).Once()
	store.On("UpsertBrand", mock.Anything, brand).Return(int32(5), nil).Once()
	store.On("LoadPOIs", mock.Anything, int32(5), pois).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	summary, err := p.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesSkipped)
	store.AssertExpectations(t)
}

func TestRunBrandUpsertFailureSkipsLoad(t *testing.T) {
	dir := sourceDir(t, "a.geojson", "b.geojson")
	store := &MockStore{}
	extractor := &MockExtractor{}

	brandA := &models.Brand{Name: "A"}
	brandB := &models.Brand{Name: "B"}
	poisA := []models.POI{{SpiderID: "a", CountryCode: "FR"}}
	poisB := []models.POI{{SpiderID: "b", CountryCode: "US"}}

	store.On("TruncateAll", mock.Anything).Return(nil).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "a.geojson")).Return(brandA, poisA, nil).Once()
	extractor.On("ExtractFile", filepath.Join(dir, "b.geojson")).Return(brandB, poisB, nil).Once()
	store.On("UpsertBrand", mock.Anything, brandA).Return(int32(0), errors.New("db error")).Once()
	store.On("UpsertBrand", mock.Anything, brandB).Return(int32(2), nil).Once()
	store.On("LoadPOIs", mock.Anything, int32(2), poisB).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	summary, err := p.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesSkipped)
	// The failed brand's POIs were never loaded.
	store.AssertNotCalled(t, "LoadPOIs", mock.Anything, int32(0), mock.Anything)
	store.AssertExpectations(t)
}

func TestRunLoadFailureDoesNotAbortRun(t *testing.T) {
	dir := sourceDir(t, "a.geojson", "b.geojson")
	store := &MockStore{}
	extractor := &MockExtractor{}

	brandA := &models.Brand{Name: "A"}
	brandB := &models.Brand{Name: "B"}
	poisA := []models.POI{{SpiderID: "a", CountryCode: "FR"}}
	poisB := []models.POI{{SpiderID: "b", CountryCode: "US"}}

	store.On("TruncateAll", mock.Anything).Return(nil).Once()
	extractor.On("ExtractFile", mock.Anything).Return(brandA, poisA, nil).Once()
	extractor.On("ExtractFile", mock.Anything).Return(brandB, poisB, nil).Once()
	store.On("UpsertBrand", mock.Anything, brandA).Return(int32(1), nil).Once()
	store.On("UpsertBrand", mock.Anything, brandB).Return(int32(2), nil).Once()
	store.On("LoadPOIs", mock.Anything, int32(1), poisA).Return(errors.New("copy failed")).Once()
	store.On("LoadPOIs", mock.Anything, int32(2), poisB).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	summary, err := p.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesSkipped)
	store.AssertExpectations(t)
}

func TestRunIgnoresSubdirectories(t *testing.T) {
	dir := sourceDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	store := &MockStore{}
	extractor := &MockExtractor{}
	store.On("TruncateAll", mock.Anything).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	summary, err := p.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesProcessed)
	extractor.AssertNotCalled(t, "ExtractFile", mock.Anything)
}

func TestRunMissingDirectory(t *testing.T) {
	store := &MockStore{}
	extractor := &MockExtractor{}
	store.On("TruncateAll", mock.Anything).Return(nil).Once()

	p := NewPipeline(store, extractor, nil)
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}
