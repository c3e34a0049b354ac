package tree

import (
	"math/bits"

	"github.com/benz9527/xrbtree/lib/infra"
)

type rbNode[E any] struct {
	parent  *rbNode[E]
	left    *rbNode[E]
	right   *rbNode[E]
	payload E
	color   RBColor
}

func (node *rbNode[E]) Color() RBColor {
	return node.color
}

func (node *rbNode[E]) Payload() E {
	return node.payload
}

func (node *rbNode[E]) Left() RBNode[E] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *rbNode[E]) Parent() RBNode[E] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

func (node *rbNode[E]) Right() RBNode[E] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

// All NIL nodes are considered black.
func (node *rbNode[E]) isBlack() bool {
	return node == nil || node.color == Black
}

func (node *rbNode[E]) isRed() bool {
	return node != nil && node.color == Red
}

func (node *rbNode[E]) isRoot() bool {
	return node != nil && node.parent == nil
}

func (node *rbNode[E]) Direction() RBDirection {
	if node == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	if node.isRoot() {
		return Root
	}
	if node == node.parent.left {
		return Left
	}
	return Right
}

func (node *rbNode[E]) fixLink() {
	if node.left != nil {
		node.left.parent = node
	}
	if node.right != nil {
		node.right.parent = node
	}
}

func (node *rbNode[E]) minimum() *rbNode[E] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

// The succ node of the current node is its next node in sorted order.
func (node *rbNode[E]) succ() *rbNode[E] {
	x := node
	if x == nil {
		return nil
	}
	if x.right != nil {
		return x.right.minimum()
	}

	aux := x.parent
	// Backtrack until x is reached from a left child edge.
	for aux != nil && x == aux.right {
		x = aux
		aux = aux.parent
	}
	return aux
}

type rbTree[E any] struct {
	root     *rbNode[E]
	count    int64
	maxNodes int64
	isDesc   bool
	cmp      infra.Comparator[E]
}

func (tree *rbTree[E]) Len() int64 {
	return tree.count
}

func (tree *rbTree[E]) IsEmpty() bool {
	return tree.root == nil
}

func (tree *rbTree[E]) Root() RBNode[E] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// So the shortest path nodes are black nodes.
// The longest path nodes' number is 2 * shortest path nodes' number.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[E]) leftRotate(x *rbNode[E]) {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y := x.parent, x.right
	dir := x.Direction()
	x.right, y.left = y.left, x

	x.fixLink()
	y.fixLink()

	switch dir {
	case Root:
		tree.root = y
	case Left:
		p.left = y
	case Right:
		p.right = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to left-rotate")
	}
	y.parent = p
}

/*
			 |                         |
			 X                         L
			/ \     rightRotate(X)    / \
	       L   R    ============>   Ld   X
		  / \                           / \
		Ld   Lc                       Lc   R
*/
func (tree *rbTree[E]) rightRotate(x *rbNode[E]) {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y := x.parent, x.left
	dir := x.Direction()
	x.left, y.right = y.right, x

	x.fixLink()
	y.fixLink()

	switch dir {
	case Root:
		tree.root = y
	case Left:
		p.left = y
	case Right:
		p.right = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to right-rotate")
	}
	y.parent = p
}

func (tree *rbTree[E]) allocNode(payload E, parent *rbNode[E]) (*rbNode[E], error) {
	if tree.maxNodes > 0 && tree.count >= tree.maxNodes {
		return nil, ErrRBTreeResourceExhausted
	}
	return &rbNode[E]{
		payload: payload,
		color:   Red,
		parent:  parent,
	}, nil
}

// i1: Empty rbtree, the new node becomes the root and is painted to black.
// i2: An equal payload is present, reject it without any mutation.
func (tree *rbTree[E]) Insert(payload E) (bool, error) {
	var (
		x, y *rbNode[E] = tree.root, nil
		res  int64
	)
	for x != nil {
		y = x
		if res = tree.cmp(payload, x.payload); /* i2 */ res == 0 {
			return false, nil
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	z, err := tree.allocNode(payload, y)
	if err != nil {
		return false, err
	}

	if /* i1 */ y == nil {
		tree.root = z
	} else if res < 0 {
		y.left = z
	} else {
		y.right = z
	}
	tree.count++
	tree.insertRebalance(z)
	return true, nil
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

im1: Current node X's parent P is black, hold p3 and p4.

im2: Current node X is the root, repaint X into black.

im3: If both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Continue to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P. Rotate P to opposite direction.
After rotation still red-violation. Here must enter im5 to fix.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: Handle im4 scenario, current node is the same direction as parent.

	    [G]                 [P]
	    / \    rotate(G)    / \
	  <P> [U]  ========>  <X> <G>
	  /                         \
	<X>                         [U]
*/
func (tree *rbTree[E]) insertRebalance(x *rbNode[E]) {
	// The red parent is never the root, so the grandpa exists.
	for /* im1 */ x != tree.root && x.parent.isRed() {
		p := x.parent
		g := p.parent
		if p == g.left {
			if u := g.right; /* im3 */ u.isRed() {
				p.color, u.color, g.color = Black, Black, Red
				x = g
				continue
			}
			if /* im4 */ x == p.right {
				x = p
				tree.leftRotate(x)
				p = x.parent
			}
			/* im5 */
			p.color, g.color = Black, Red
			tree.rightRotate(g)
		} else {
			if u := g.left; /* im3 */ u.isRed() {
				p.color, u.color, g.color = Black, Black, Red
				x = g
				continue
			}
			if /* im4 */ x == p.left {
				x = p
				tree.rightRotate(x)
				p = x.parent
			}
			/* im5 */
			p.color, g.color = Black, Red
			tree.leftRotate(g)
		}
	}
	/* im2 */
	tree.root.color = Black
}

func (tree *rbTree[E]) search(payload E) *rbNode[E] {
	for aux := tree.root; aux != nil; {
		res := tree.cmp(payload, aux.payload)
		if res == 0 {
			return aux
		} else if res > 0 {
			aux = aux.right
		} else {
			aux = aux.left
		}
	}
	return nil
}

func (tree *rbTree[E]) Find(payload E) RBIterator[E] {
	return RBIterator[E]{tree: tree, node: tree.search(payload)}
}

func (tree *rbTree[E]) Member(payload E) bool {
	return tree.search(payload) != nil
}

/*
r1: Node Z has at most one child, Y is Z itself.

r2: Node Z has left and right children. Y is Z's succ, the leftmost
node of Z's right subtree, which has no left child. Y's payload is
moved into Z and the Y cell is the one spliced out.

	  |                    |
	  Z                    S
	 / \                  / \
	L  ..   move(S, Z)   L  ..
		|   =========>       |
		P                    P
	   / \                  / \
	  S  ..                X  ..
	   \
	    X

r3: X (Y's only child or NIL) takes Y's position. If Y was red, no
property is broken. If Y was black, every path through X lost one
black node, rebalance from X with X's parent carried explicitly since
X may be NIL.
*/
func (tree *rbTree[E]) removeNode(z *rbNode[E]) {
	y := z
	if /* r2 */ z.left != nil && z.right != nil {
		y = z.right.minimum()
	}

	var x *rbNode[E]
	if y.left != nil {
		x = y.left
	} else {
		x = y.right
	}

	/* r3 */
	xp := y.parent
	if x != nil {
		x.parent = xp
	}
	switch dir := y.Direction(); dir {
	case Root:
		tree.root = x
	case Left:
		xp.left = x
	case Right:
		xp.right = x
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to splice")
	}

	if y != z {
		z.payload = y.payload
	}

	if y.isBlack() {
		tree.removeRebalance(x, xp)
	}

	// Unlink node
	var zero E
	y.parent, y.left, y.right = nil, nil, nil
	y.payload = zero
	tree.count--
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

X carries an extra black. Sc is the sibling S's child at the same
side as X, Sd the one at the opposite side.

rm1: Sibling S is red, so P, Sc and Sd are black.
Repaint S into black, P into red, rotate P toward X. S is recomputed.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm2: S, Sc and Sd are black.
Repaint S into red and move the extra black up to P. If P is red the
loop stops and P is painted black below.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm3: S is black, Sc is red and Sd is black.
Repaint Sc into black, S into red, rotate S away from X. Enter rm4.

	  {P}                   {P}
	  / \    r-rotate(S)    / \
	[X] [S]  ==========>  [X] [Sc]
	    / \                     \
	  <Sc> [Sd]                 <S>
	                              \
	                              [Sd]

rm4: S is black and Sd is red.
S takes P's color, P and Sd are painted black, rotate P toward X.
Every property holds, stop.

	  {P}                   {S}
	  / \    l-rotate(P)    / \
	[X] [S]  ==========>  [P] [Sd]
	    / \               / \
	 [Sc] <Sd>          [X] [Sc]
*/
func (tree *rbTree[E]) removeRebalance(x, xp *rbNode[E]) {
	for x != tree.root && x.isBlack() {
		if x == xp.left {
			s := xp.right
			if /* rm1 */ s.isRed() {
				s.color, xp.color = Black, Red
				tree.leftRotate(xp)
				s = xp.right
			}
			if /* rm2 */ s.left.isBlack() && s.right.isBlack() {
				s.color = Red
				x, xp = xp, xp.parent
				continue
			}
			if /* rm3 */ s.right.isBlack() {
				s.left.color, s.color = Black, Red
				tree.rightRotate(s)
				s = xp.right
			}
			/* rm4 */
			s.color, xp.color, s.right.color = xp.color, Black, Black
			tree.leftRotate(xp)
		} else {
			s := xp.left
			if /* rm1 */ s.isRed() {
				s.color, xp.color = Black, Red
				tree.rightRotate(xp)
				s = xp.left
			}
			if /* rm2 */ s.left.isBlack() && s.right.isBlack() {
				s.color = Red
				x, xp = xp, xp.parent
				continue
			}
			if /* rm3 */ s.left.isBlack() {
				s.right.color, s.color = Black, Red
				tree.leftRotate(s)
				s = xp.left
			}
			/* rm4 */
			s.color, xp.color, s.left.color = xp.color, Black, Black
			tree.rightRotate(xp)
		}
		x = tree.root
	}
	if x != nil {
		x.color = Black
	}
}

func (tree *rbTree[E]) Remove(it RBIterator[E]) {
	if it.node == nil || it.tree != tree {
		return
	}
	tree.removeNode(it.node)
}

func (tree *rbTree[E]) Delete(payload E) bool {
	z := tree.search(payload)
	if z == nil {
		return false
	}
	tree.removeNode(z)
	return true
}

func (tree *rbTree[E]) RemoveMin() (payload E, ok bool) {
	_min := tree.root.minimum()
	if _min == nil {
		return payload, false
	}
	// The minimum has no left child so it is spliced out itself.
	payload = _min.payload
	tree.removeNode(_min)
	return payload, true
}

func (tree *rbTree[E]) Begin() RBIterator[E] {
	return RBIterator[E]{tree: tree, node: tree.root.minimum()}
}

// Height is the node count of the longest root to leaf path.
// Level order traversal, bounded by the widest level instead of the
// call stack.
func (tree *rbTree[E]) Height() int {
	if tree.root == nil {
		return 0
	}

	height := 0
	level := []*rbNode[E]{tree.root}
	next := make([]*rbNode[E], 0, 2)
	for len(level) > 0 {
		height++
		next = next[:0]
		for _, aux := range level {
			if aux.left != nil {
				next = append(next, aux.left)
			}
			if aux.right != nil {
				next = append(next, aux.right)
			}
		}
		level, next = next, level
	}
	return height
}

// Inorder traversal to implement the DFS.
func (tree *rbTree[E]) Foreach(action func(idx int64, color RBColor, payload E) bool) {
	aux := tree.root
	if aux == nil {
		return
	}

	// Stack depth never exceeds the height bound 2*log2(n+1).
	stack := make([]*rbNode[E], 0, 2*bits.Len64(uint64(tree.count))+1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; !action(idx, aux.color, aux.payload) {
			return
		}
		idx++
		stack = stack[:size-1]
		for aux = aux.right; aux != nil; aux = aux.left {
			stack = append(stack, aux)
		}
	}
}

// Release unlinks every cell in post order. Payloads are left to the
// caller.
func (tree *rbTree[E]) Release() {
	aux := tree.root
	tree.root = nil
	if aux == nil {
		return
	}

	var zero E
	stack := []*rbNode[E]{aux}
	for size := len(stack); size > 0; size = len(stack) {
		aux = stack[size-1]
		if aux.left != nil {
			stack = append(stack, aux.left)
			aux.left = nil
			continue
		}
		if aux.right != nil {
			stack = append(stack, aux.right)
			aux.right = nil
			continue
		}
		stack = stack[:size-1]
		aux.parent = nil
		aux.payload = zero
		tree.count--
	}
}

type RBTreeOpt[E any] func(*rbTree[E])

// WithRBTreeDesc reverses the comparator, iteration becomes descending.
func WithRBTreeDesc[E any]() RBTreeOpt[E] {
	return func(tree *rbTree[E]) {
		tree.isDesc = true
	}
}

// WithRBTreeMaxNodes bounds the cells the tree may allocate. Inserts past
// the bound fail with ErrRBTreeResourceExhausted. Non-positive means
// unbounded.
func WithRBTreeMaxNodes[E any](limit int64) RBTreeOpt[E] {
	return func(tree *rbTree[E]) {
		tree.maxNodes = limit
	}
}

func NewRBTree[E any](cmp infra.Comparator[E], opts ...RBTreeOpt[E]) RBTree[E] {
	return newRBTree[E](cmp, opts...)
}

func newRBTree[E any](cmp infra.Comparator[E], opts ...RBTreeOpt[E]) *rbTree[E] {
	if cmp == nil {
		panic( /* debug assertion */ "[rbtree] nil comparator")
	}
	tree := &rbTree[E]{
		count:  0,
		isDesc: false,
		cmp:    cmp,
	}

	for _, o := range opts {
		o(tree)
	}
	if tree.isDesc {
		tree.cmp = cmp.Reverse()
	}
	return tree
}
