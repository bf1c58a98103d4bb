package mapping

import "path/filepath"

// Layout names every path of a map folder.
type Layout struct {
	Root string
}

func (l Layout) Logs() string           { return filepath.Join(l.Root, "logs") }
func (l Layout) Log(name string) string { return filepath.Join(l.Logs(), name+".log") }
func (l Layout) Metadata() string       { return filepath.Join(l.Root, "metadata.yaml") }
func (l Layout) Edex() string           { return filepath.Join(l.Root, "edex") }
func (l Layout) CuvslamMap() string     { return filepath.Join(l.Root, "cuvslam_map") }
func (l Layout) OdomPoses() string      { return filepath.Join(l.Root, "odom_poses.tum") }
func (l Layout) SlamPoses() string      { return filepath.Join(l.Root, "slam_poses.tum") }
func (l Layout) Poses() string          { return filepath.Join(l.Root, "poses") }
func (l Layout) OccupancyMap() string   { return filepath.Join(l.Root, "occupancy_map") }
func (l Layout) CuvglMap() string       { return filepath.Join(l.Root, "cuvgl_map") }
func (l Layout) Keyframes() string      { return filepath.Join(l.CuvglMap(), "keyframes") }
