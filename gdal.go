package sampledb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/sampledb/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// SpatialRef is a spatial reference given either as an EPSG code or as a
// proj4 string.
type SpatialRef interface {
	String() string
	spatialRef()
}

type EPSG int

func (e EPSG) String() string { return "EPSG:" + strconv.Itoa(int(e)) }

func (EPSG) spatialRef() {}

type Proj4 string

func (p Proj4) String() string { return string(p) }

func (Proj4) spatialRef() {}

var (
	emptyRef       = gdal.SpatialReference{}
	emptyTransform = gdal.CoordinateTransform{}

	errTransformCreate = errors.New("coordinate transformation not available")
)

// GdalToolbox caches spatial references and coordinate transformations.
// It is safe for concurrent use; GDAL calls on cached handles are serialized.
type GdalToolbox struct {
	refMap   map[string]gdal.SpatialReference
	transMap map[string]gdal.CoordinateTransform
	rLock    sync.Mutex
	logTag   string
}

func NewGdalToolbox() *GdalToolbox {
	return &GdalToolbox{
		refMap:   map[string]gdal.SpatialReference{},
		transMap: map[string]gdal.CoordinateTransform{},
		logTag:   "GdalToolbox:",
	}
}

// Destroy releases every cached GDAL handle. The toolbox must not be used
// afterwards.
func (g *GdalToolbox) Destroy() {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	for k, ct := range g.transMap {
		ct.Destroy()
		delete(g.transMap, k)
	}
	for k, ref := range g.refMap {
		ref.Destroy()
		delete(g.refMap, k)
	}
}

// getRef resolves a reference, caller holds rLock.
func (g *GdalToolbox) getRef(r SpatialRef) (ref gdal.SpatialReference, err error) {
	key := r.String()
	ref, ok := g.refMap[key]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	switch t := r.(type) {
	case EPSG:
		err = ref.FromEPSG(int(t))
	case Proj4:
		err = ref.FromProj4(string(t))
	}
	if err != nil {
		log.Error(g.logTag+"set spatial ref failed", zap.String("ref", key), zap.Error(err))
		ref.Destroy()
		return
	}
	// Data axes stay (x,y)/(lon,lat) whatever the CRS authority order is;
	// GDAL 3 would otherwise swap lat/lon for EPSG:4326.
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[key] = ref
	return
}

// getTransform resolves a transformation, caller holds rLock.
func (g *GdalToolbox) getTransform(src, dst SpatialRef) (ct gdal.CoordinateTransform, err error) {
	key := src.String() + ">" + dst.String()
	ct, ok := g.transMap[key]
	if ok {
		return
	}
	sRef, err := g.getRef(src)
	if err != nil {
		return
	}
	tRef, err := g.getRef(dst)
	if err != nil {
		return
	}
	ct = gdal.CreateCoordinateTransform(sRef, tRef)
	if ct == emptyTransform {
		err = errTransformCreate
		return
	}
	g.transMap[key] = ct
	return
}

// Reproject transforms geo in place from src to dst. An identical source and
// target leave the coordinates untouched.
func (g *GdalToolbox) Reproject(geo gdal.Geometry, src, dst SpatialRef) (err error) {
	if src == nil || dst == nil {
		return &ReprojectionError{Source: fmt.Sprint(src), Target: fmt.Sprint(dst), Err: ErrVoidSrid}
	}
	if src.String() == dst.String() {
		return
	}
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ct, err := g.getTransform(src, dst)
	if err == nil {
		err = geo.Transform(ct)
	}
	if err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Stringer("src", src), zap.Stringer("dst", dst), zap.Error(err))
		err = &ReprojectionError{Source: src.String(), Target: dst.String(), Err: err}
	}
	return
}

func (g *GdalToolbox) parseWKT(wkt string, r SpatialRef) (ret gdal.Geometry, err error) {
	g.rLock.Lock()
	ref, err := g.getRef(r)
	g.rLock.Unlock()
	if err != nil {
		err = &ReprojectionError{Source: r.String(), Target: r.String(), Err: err}
		return
	}
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.String("wkt", wkt), zap.Error(err))
		err = &ConfigError{Msg: fmt.Sprintf("invalid WKT %q", wkt), Err: err}
	}
	return
}

// TransformWkt reprojects a WKT (or EWKT, whose SRID tag then overrides src)
// and returns it as EWKT in dst.
func (g *GdalToolbox) TransformWkt(wkt string, src SpatialRef, dst EPSG) (ewkt string, err error) {
	if tagged, body, ok := splitEWKT(wkt); ok {
		src, wkt = tagged, body
	}
	geo, err := g.parseWKT(wkt, src)
	if err != nil {
		return
	}
	defer geo.Destroy()
	if err = g.Reproject(geo, src, dst); err != nil {
		return
	}
	return ToEWKT(geo, int(dst))
}

// PointEWKT builds a point from lon/lat declared in src and returns it as
// EWKT in dst.
func (g *GdalToolbox) PointEWKT(lon, lat float64, src SpatialRef, dst EPSG) (ewkt string, err error) {
	geo := gdal.Create(gdal.GT_Point)
	defer geo.Destroy()
	geo.SetPoint2D(0, lon, lat)
	if err = g.Reproject(geo, src, dst); err != nil {
		return
	}
	return ToEWKT(geo, int(dst))
}

// LayerRef returns the reference a layer is declared in, as proj4. Layers
// without one (no .prj) report ErrVoidSrid.
func (g *GdalToolbox) LayerRef(sp gdal.SpatialReference) (ref SpatialRef, err error) {
	if sp == emptyRef {
		err = ErrVoidSrid
		return
	}
	proj, err := sp.ToProj4()
	if err != nil || strings.TrimSpace(proj) == "" {
		log.Error(g.logTag+"export layer ref failed", zap.Error(err))
		if err == nil {
			err = ErrVoidSrid
		}
		return
	}
	ref = Proj4(strings.TrimSpace(proj))
	log.Debug(g.logTag+"got layer ref", zap.Stringer("ref", ref))
	return
}

func ToEWKT(geo gdal.Geometry, srid int) (ewkt string, err error) {
	wkt, err := geo.ToWKT()
	if err != nil {
		return
	}
	ewkt = fmt.Sprintf(EWKT_PREFIX, srid) + wkt
	return
}

// splitEWKT splits "SRID=n;WKT".
func splitEWKT(s string) (ref EPSG, wkt string, ok bool) {
	head, body, found := strings.Cut(strings.TrimSpace(s), ";")
	if !found || !strings.HasPrefix(strings.ToUpper(head), "SRID=") {
		return
	}
	code, err := strconv.Atoi(head[len("SRID="):])
	if err != nil {
		return
	}
	return EPSG(code), body, true
}
