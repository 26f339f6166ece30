package cpu

import (
	"math"
	"time"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/types"
)

const (
	// The BVH builder will not attempt to calculate split candidates
	// if the node bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-3

	// If the split step (calculated as side length / (1024 / (depth+1)))
	// is less than this threshold the BVH builder will not evaluate
	// split candidates.
	minSplitStep float32 = 1e-5

	// Leafs are created for work lists of this size or smaller.
	minLeafItems = 2
)

// A flattened BVH node. Leafs have count > 0 and reference the sphere range
// [first, first+count); interior nodes reference their children.
type bvhNode struct {
	min, max    types.Vec3
	left, right int32
	first       int32
	count       int32
}

// A bounding volume hierarchy over the world spheres.
type bvh struct {
	nodes []bvhNode

	// Spheres reordered so that the items of each leaf are contiguous.
	spheres []sphere
}

type bvhSplitCandidate struct {
	axis                  int
	splitPoint            float32
	leftCount, rightCount int
	score                 float32
}

type bvhStats struct {
	nodes    int
	leafs    int
	maxDepth int
}

type bvhBuilder struct {
	logger log.Logger
	out    *bvh

	// Score result chan
	scoreChan chan bvhSplitCandidate

	stats bvhStats
}

// Construct a BVH from a list of spheres.
//
// The builder uses SAH for scoring splits:
// score = num_items * node bbox face area.
func buildBVH(items []sphere) *bvh {
	builder := &bvhBuilder{
		logger:    log.New("bvh"),
		out:       &bvh{spheres: make([]sphere, 0, len(items))},
		scoreChan: make(chan bvhSplitCandidate),
	}

	start := time.Now()
	if len(items) != 0 {
		builder.partition(items, 0)
	}
	builder.logger.Debugf(
		"BVH build time: %s, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
		time.Since(start), len(items), builder.stats.maxDepth, builder.stats.nodes, builder.stats.leafs,
	)
	return builder.out
}

func sphereBBox(s *sphere) (types.Vec3, types.Vec3) {
	r := types.XYZ(s.radius, s.radius, s.radius)
	return s.center.Sub(r), s.center.Add(r)
}

// Partition worklist and return node index.
func (b *bvhBuilder) partition(workList []sphere, depth int) int32 {
	if depth > b.stats.maxDepth {
		b.stats.maxDepth = depth
	}

	node := bvhNode{
		min: types.XYZ(math.MaxFloat32, math.MaxFloat32, math.MaxFloat32),
		max: types.XYZ(-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32),
	}

	for idx := range workList {
		itemMin, itemMax := sphereBBox(&workList[idx])
		node.min = types.MinVec3(node.min, itemMin)
		node.max = types.MaxVec3(node.max, itemMax)
	}

	if len(workList) <= minLeafItems {
		return b.createLeaf(&node, workList)
	}

	side := node.max.Sub(node.min)
	bestScore := float32(len(workList)) * (side[0]*side[1] + side[1]*side[2] + side[0]*side[2])
	var bestSplit *bvhSplitCandidate

	// Run axis split tests in parallel
	pendingScores := 0
	for axis := 0; axis < 3; axis++ {
		if side[axis] < minSideLength {
			continue
		}

		// We want the split steps to become more granular the deeper we go
		splitStep := side[axis] / (1024.0 / float32(depth+1))
		if splitStep < minSplitStep {
			continue
		}

		for splitPoint := node.min[axis]; splitPoint < node.max[axis]; splitPoint += splitStep {
			candidate := bvhSplitCandidate{
				axis:       axis,
				splitPoint: splitPoint,
			}
			pendingScores++
			go candidate.evaluate(workList, b.scoreChan)
		}
	}

	for ; pendingScores > 0; pendingScores-- {
		candidate := <-b.scoreChan
		if candidate.score < bestScore {
			bestScore = candidate.score
			bestSplit = &candidate
		}
	}

	// If we can't find a split that improves the current node score create a leaf
	if bestSplit == nil {
		return b.createLeaf(&node, workList)
	}

	leftWorkList := make([]sphere, 0, bestSplit.leftCount)
	rightWorkList := make([]sphere, 0, bestSplit.rightCount)
	for _, item := range workList {
		if item.center[bestSplit.axis] < bestSplit.splitPoint {
			leftWorkList = append(leftWorkList, item)
		} else {
			rightWorkList = append(rightWorkList, item)
		}
	}

	nodeIndex := len(b.out.nodes)
	b.out.nodes = append(b.out.nodes, node)
	b.stats.nodes++

	left := b.partition(leftWorkList, depth+1)
	right := b.partition(rightWorkList, depth+1)
	b.out.nodes[nodeIndex].left = left
	b.out.nodes[nodeIndex].right = right

	return int32(nodeIndex)
}

// Calculate the score for splitting the workList with this split candidate
// and report the result to the supplied channel.
func (c bvhSplitCandidate) evaluate(workList []sphere, resChan chan<- bvhSplitCandidate) {
	lmin := types.XYZ(math.MaxFloat32, math.MaxFloat32, math.MaxFloat32)
	rmin := lmin
	lmax := types.XYZ(-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32)
	rmax := lmax

	for idx := range workList {
		itemMin, itemMax := sphereBBox(&workList[idx])
		if workList[idx].center[c.axis] < c.splitPoint {
			c.leftCount++
			lmin = types.MinVec3(lmin, itemMin)
			lmax = types.MaxVec3(lmax, itemMax)
		} else {
			c.rightCount++
			rmin = types.MinVec3(rmin, itemMin)
			rmax = types.MaxVec3(rmax, itemMax)
		}
	}

	// Make sure that we got enough items of each side of the split
	minItemsOnEachSide := 2
	if len(workList) == 2 {
		minItemsOnEachSide = 1
	}
	if c.leftCount < minItemsOnEachSide || c.rightCount < minItemsOnEachSide {
		c.score = math.MaxFloat32
		resChan <- c
		return
	}

	lside := lmax.Sub(lmin)
	rside := rmax.Sub(rmin)
	c.score = (float32(c.leftCount) * (lside[0]*lside[1] + lside[1]*lside[2] + lside[0]*lside[2])) +
		(float32(c.rightCount) * (rside[0]*rside[1] + rside[1]*rside[2] + rside[0]*rside[2]))
	resChan <- c
}

// Setup the given node as a leaf containing all items in the work list.
// Returns the index to the node in the bvh node array.
func (b *bvhBuilder) createLeaf(node *bvhNode, workList []sphere) int32 {
	node.first = int32(len(b.out.spheres))
	node.count = int32(len(workList))
	b.out.spheres = append(b.out.spheres, workList...)

	nodeIndex := len(b.out.nodes)
	b.out.nodes = append(b.out.nodes, *node)
	b.stats.leafs++

	return int32(nodeIndex)
}

// Find the closest sphere intersection in (tMin, tMax).
func (b *bvh) hit(r ray, tMin, tMax float32, rec *hitRecord) bool {
	if len(b.nodes) == 0 {
		return false
	}

	invDir := types.XYZ(1/r.dir[0], 1/r.dir[1], 1/r.dir[2])
	hitAnything := false
	closest := tMax

	var buf [64]int32
	stack := append(buf[:0], 0)
	for len(stack) > 0 {
		node := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if !node.intersects(r.origin, invDir, tMin, closest) {
			continue
		}

		if node.count > 0 {
			for idx := node.first; idx < node.first+node.count; idx++ {
				if b.spheres[idx].hit(r, tMin, closest, rec) {
					hitAnything = true
					closest = rec.t
				}
			}
			continue
		}

		stack = append(stack, node.left, node.right)
	}

	return hitAnything
}

// Slab test against the node bbox.
func (n *bvhNode) intersects(origin, invDir types.Vec3, tMin, tMax float32) bool {
	for axis := 0; axis < 3; axis++ {
		t0 := (n.min[axis] - origin[axis]) * invDir[axis]
		t1 := (n.max[axis] - origin[axis]) * invDir[axis]
		if invDir[axis] < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return false
		}
	}
	return true
}
