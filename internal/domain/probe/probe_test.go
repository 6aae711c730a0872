package probe_test

import (
	"path/filepath"
	"testing"

	"github.com/rdarie/spikepipe/internal/domain/probe"
	"github.com/smartystreets/goconvey/convey"
)

func TestLinearProbe(t *testing.T) {
	convey.Convey("Given a linear probe", t, func() {
		p := probe.Linear(4, 25)

		convey.Convey("Then contacts are spaced along the shank", func() {
			convey.So(p.NumContacts(), convey.ShouldEqual, 4)
			convey.So(p.ContactPositions[0], convey.ShouldResemble, [2]float64{0, 0})
			convey.So(p.ContactPositions[3], convey.ShouldResemble, [2]float64{0, 75})
			convey.So(p.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When device channel indices are cleared", func() {
			p.DeviceChannelIndices = nil

			convey.Convey("Then validation demands them before saving", func() {
				err := p.Validate()
				convey.So(err, convey.ShouldWrap, probe.ErrNoDeviceIndices)
			})
		})

		convey.Convey("When indices are remapped", func() {
			convey.So(p.SetDeviceChannelIndices([]int{3, 2, 1, 0}), convey.ShouldBeNil)
			convey.So(p.Validate(), convey.ShouldBeNil)

			convey.Convey("And a wrong-length remap is rejected", func() {
				err := p.SetDeviceChannelIndices([]int{0, 1})
				convey.So(err, convey.ShouldWrap, probe.ErrInconsistent)
			})
		})

		convey.Convey("When two contacts share a device channel", func() {
			convey.So(p.SetDeviceChannelIndices([]int{0, 0, 1, 2}), convey.ShouldBeNil)
			convey.So(p.Validate(), convey.ShouldWrap, probe.ErrInconsistent)
		})
	})
}

func TestGridProbe(t *testing.T) {
	convey.Convey("Given a 2x2 grid probe", t, func() {
		p := probe.Grid(2, 2, 32, 20)

		convey.So(p.NumContacts(), convey.ShouldEqual, 4)
		convey.So(p.ContactPositions[1], convey.ShouldResemble, [2]float64{32, 0})
		convey.So(p.ContactPositions[2], convey.ShouldResemble, [2]float64{0, 20})
		convey.So(p.Validate(), convey.ShouldBeNil)
	})
}

func TestFromSpikeGLXGeom(t *testing.T) {
	convey.Convey("Given a SpikeGLX geometry map", t, func() {
		geom := "(NP1000,1,0,70)(0:27:0:1)(0:59:0:1)(0:27:20:1)(0:59:20:0)"

		p, err := probe.FromSpikeGLXGeom(geom)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then contact positions come from the map", func() {
			convey.So(p.NumContacts(), convey.ShouldEqual, 4)
			convey.So(p.ContactPositions[0], convey.ShouldResemble, [2]float64{27, 0})
			convey.So(p.ContactPositions[1], convey.ShouldResemble, [2]float64{59, 0})
			convey.So(p.ContactPositions[2], convey.ShouldResemble, [2]float64{27, 20})
			convey.So(p.Annotations["part_number"], convey.ShouldEqual, "NP1000")
		})

		convey.Convey("Then unused channels are unconnected", func() {
			convey.So(p.DeviceChannelIndices[3], convey.ShouldEqual, -1)
			convey.So(p.DeviceChannelIndices[2], convey.ShouldEqual, 2)
		})

		convey.Convey("Then multi-shank maps offset x by the shank pitch", func() {
			multi := "(NP2010,2,250,70)(0:10:0:1)(1:10:0:1)"
			p2, err := probe.FromSpikeGLXGeom(multi)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p2.ContactPositions[0], convey.ShouldResemble, [2]float64{10, 0})
			convey.So(p2.ContactPositions[1], convey.ShouldResemble, [2]float64{260, 0})
			convey.So(p2.ShankIDs[1], convey.ShouldEqual, "1")
		})

		convey.Convey("Then malformed maps are rejected", func() {
			for _, bad := range []string{"", "(NP1000,1,0,70)", "(NP1000,1)(0:1:2:1)", "(NP1000,1,0,70)(0:1:2)"} {
				_, err := probe.FromSpikeGLXGeom(bad)
				convey.So(err, convey.ShouldWrap, probe.ErrBadGeomMap)
			}
		})
	})
}

func TestGroupSaveLoad(t *testing.T) {
	convey.Convey("Given a probe group", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "probe.json")
		g := probe.NewGroup(probe.Linear(8, 20))

		convey.Convey("When saved and reloaded", func() {
			convey.So(g.Save(path), convey.ShouldBeNil)

			loaded, err := probe.Load(path)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the document round-trips", func() {
				convey.So(loaded.Specification, convey.ShouldEqual, "probeinterface")
				convey.So(len(loaded.Probes), convey.ShouldEqual, 1)
				convey.So(loaded.Probes[0].ContactPositions, convey.ShouldResemble, g.Probes[0].ContactPositions)
				convey.So(loaded.Probes[0].DeviceChannelIndices, convey.ShouldResemble, g.Probes[0].DeviceChannelIndices)
			})
		})

		convey.Convey("When a probe lacks device indices", func() {
			bad := probe.Linear(4, 20)
			bad.DeviceChannelIndices = nil
			g := probe.NewGroup(bad)

			convey.Convey("Then saving fails with ErrNoDeviceIndices", func() {
				err := g.Save(path)
				convey.So(err, convey.ShouldWrap, probe.ErrNoDeviceIndices)
			})
		})
	})
}

func TestSorterChanMap(t *testing.T) {
	convey.Convey("Given a probe with an unconnected contact", t, func() {
		p := probe.Linear(4, 20)
		convey.So(p.SetDeviceChannelIndices([]int{0, 1, -1, 2}), convey.ShouldBeNil)

		cm, err := p.SorterChanMap()
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then only connected contacts appear", func() {
			convey.So(cm.NChan, convey.ShouldEqual, 3)
			convey.So(cm.ChanMap, convey.ShouldResemble, []int{0, 1, 2})
			convey.So(cm.Yc, convey.ShouldResemble, []float64{0, 20, 60})
			convey.So(cm.Kcoords, convey.ShouldResemble, []int{0, 0, 0})
		})

		convey.Convey("And it can be saved", func() {
			path := filepath.Join(t.TempDir(), "chanmap.json")
			convey.So(cm.Save(path), convey.ShouldBeNil)
		})
	})
}
